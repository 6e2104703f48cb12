package searchspace

import (
	"reflect"

	"github.com/zclconf/go-cty/cty"
)

// sentinel is the payload of the reserved outcome values. The two instances
// below are the only ones that ever exist, so capsule pointer identity is a
// reliable equality test.
type sentinel struct {
	name string
}

var sentinelType = cty.Capsule("search_sentinel", reflect.TypeOf(sentinel{}))

var (
	invalidSentinel = &sentinel{name: "invalid"}
	ignoredSentinel = &sentinel{name: "ignored"}
)

// Invalid returns the reserved outcome marking an assignment that is not a
// legal configuration point.
func Invalid() cty.Value {
	return cty.CapsuleVal(sentinelType, invalidSentinel)
}

// Ignored returns the reserved outcome marking a parameter that is
// irrelevant under the current assignment and must be excluded from the
// effective configuration.
func Ignored() cty.Value {
	return cty.CapsuleVal(sentinelType, ignoredSentinel)
}

// IsInvalid reports whether v is the Invalid sentinel.
func IsInvalid(v cty.Value) bool {
	return isSentinel(v, invalidSentinel)
}

// IsIgnored reports whether v is the Ignored sentinel.
func IsIgnored(v cty.Value) bool {
	return isSentinel(v, ignoredSentinel)
}

// IsSentinel reports whether v is either reserved outcome.
func IsSentinel(v cty.Value) bool {
	return IsInvalid(v) || IsIgnored(v)
}

func isSentinel(v cty.Value, s *sentinel) bool {
	if v == cty.NilVal || !v.Type().Equals(sentinelType) || v.IsNull() || !v.IsKnown() {
		return false
	}
	return v.EncapsulatedValue() == s
}

// InvalidChoice returns the categorical holding only the Invalid sentinel.
// A conditional branch resolving to it declares the matched parent
// combination unsupported.
func InvalidChoice() Categorical {
	return NewCategorical(Invalid())
}

// IgnoredChoice returns the categorical holding only the Ignored sentinel.
// A conditional branch resolving to it declares the parameter irrelevant
// under the matched parent combination.
func IgnoredChoice() Categorical {
	return NewCategorical(Ignored())
}
