package resolve

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// InvalidSearchPointError reports a search point whose resolution reached
// the invalid sentinel: the joint assignment is declared unsupported and
// the point is not evaluable. It is a negative result, not a crash.
type InvalidSearchPointError struct {
	// Parameter is the parameter whose resolution produced the sentinel.
	Parameter string
	// Parents and ParentValues identify the blocking combination, when the
	// parameter's expression is conditional.
	Parents      []string
	ParentValues []cty.Value
}

func (e *InvalidSearchPointError) Error() string {
	if len(e.Parents) == 0 {
		return fmt.Sprintf("search point is invalid: parameter %q has no supported value", e.Parameter)
	}
	pairs := make([]string, len(e.Parents))
	for i, parent := range e.Parents {
		pairs[i] = fmt.Sprintf("%s=%s", parent, FormatValue(e.ParentValues[i]))
	}
	return fmt.Sprintf(
		"search point is invalid: parameter %q has no supported value under %s",
		e.Parameter, strings.Join(pairs, ", "),
	)
}

// FormatValue renders a value for diagnostics: bare text for strings,
// cty's Go-syntax rendering for everything else.
func FormatValue(v cty.Value) string {
	if v == cty.NilVal || v.IsNull() || !v.IsKnown() {
		return "null"
	}
	if v.Type() == cty.String {
		return v.AsString()
	}
	return v.GoString()
}
