package resolve

import (
	"context"
	"fmt"
	"sort"

	"dario.cat/mergo"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/quantgridgo/internal/config"
	"github.com/vk/quantgridgo/internal/ctxlog"
	"github.com/vk/quantgridgo/internal/searchspace"
)

// EffectiveConfig is the flat parameter-to-value mapping handed to the
// execution boundary. It contains no sentinels, no ignored or pruned
// parameters, and no bookkeeping keys.
type EffectiveConfig map[string]cty.Value

// Resolution is the result of resolving a search point against a pass
// definition.
type Resolution struct {
	// Point is the fully resolved point, bookkeeping keys included. The
	// orchestrator reads its own steering parameters from here.
	Point searchspace.Point
	// Effective is the stripped view for the execution boundary.
	Effective EffectiveConfig
	// Warnings are advisory, deterministically ordered messages.
	Warnings []string
}

// Build resolves the given (possibly partial) search point against the
// pass definition. Every parameter absent from the point has its default
// expression resolved depth-first; ignored parameters are dropped, an
// invalid outcome anywhere fails the whole point, exposed override
// parameters are folded into the free-form options map, and mode-foreign
// and bookkeeping keys are stripped.
func Build(ctx context.Context, def *config.PassDefinition, point searchspace.Point) (*Resolution, error) {
	logger := ctxlog.FromContext(ctx)
	table := def.Table()

	work := searchspace.Point{}
	supplied := make(map[string]bool, len(point))
	for name, val := range point {
		work[name] = val
		supplied[name] = true
	}

	resolver := searchspace.NewResolver(func(name string) (searchspace.SearchValue, bool) {
		spec, ok := table.Spec(name)
		if !ok {
			return nil, false
		}
		return defaultExpr(spec), true
	})

	// Fill in every missing default. Parent chains resolve depth-first and
	// memoize into the working point, so iteration order does not matter
	// for correctness, only for determinism of the walk.
	for _, name := range table.Names() {
		if _, ok := work[name]; ok {
			continue
		}
		spec, _ := table.Spec(name)
		val, err := resolver.ResolveDefault(name, defaultExpr(spec), work)
		if err != nil {
			return nil, err
		}
		work[name] = val
	}
	logger.Debug("Resolved all parameter defaults.", "parameters", table.Len())

	// Sentinel scan. The invalid outcome fails the point only when it was
	// resolved from the table itself; a supplied value stands on its own
	// and is at most dropped, when its choice set resolves to ignored.
	ignored := make(map[string]bool)
	for _, name := range table.Names() {
		spec, _ := table.Spec(name)
		val := work[name]

		if searchspace.IsInvalid(val) {
			return nil, invalidError(name, defaultExpr(spec), work)
		}
		if searchspace.IsIgnored(val) {
			ignored[name] = true
			continue
		}

		if supplied[name] && spec.Allowed != nil {
			choices, err := resolver.ResolveAllowed(name, spec.Allowed, work)
			if err != nil {
				return nil, err
			}
			if len(choices) == 1 && searchspace.IsIgnored(choices[0]) {
				ignored[name] = true
			}
		}
	}

	pruned := prunedNames(def, table, work)

	bookkeeping := make(map[string]bool, len(def.Bookkeeping))
	for _, name := range def.Bookkeeping {
		bookkeeping[name] = true
	}

	// Assemble the effective view. Exposed override parameters are held
	// back here and folded into the options map below.
	effective := EffectiveConfig{}
	exposed := map[string]cty.Value{}
	for _, name := range table.Names() {
		if ignored[name] || pruned[name] || bookkeeping[name] || name == def.ExtraOptionsParam {
			continue
		}
		origin, _ := table.Origin(name)
		if def.ExposedGroup != "" && origin == def.ExposedGroup {
			exposed[name] = work[name]
			continue
		}
		effective[name] = work[name]
	}

	warnings, err := foldExtraOptions(def, work, exposed, effective)
	if err != nil {
		return nil, err
	}
	if len(warnings) > 0 {
		logger.Debug("Exposed parameters overwrote extra option keys.", "count", len(warnings))
	}

	return &Resolution{Point: work, Effective: effective, Warnings: warnings}, nil
}

// AllowedSet resolves the concrete choice set of one parameter against a
// point. Search drivers use this to enumerate a parameter's legal values
// under the choices already made.
func AllowedSet(table *config.Table, name string, point searchspace.Point) ([]cty.Value, error) {
	spec, ok := table.Spec(name)
	if !ok {
		return nil, fmt.Errorf("unknown parameter %q", name)
	}
	if spec.Allowed == nil {
		return nil, nil
	}
	resolver := searchspace.NewResolver(func(parent string) (searchspace.SearchValue, bool) {
		parentSpec, ok := table.Spec(parent)
		if !ok {
			return nil, false
		}
		return defaultExpr(parentSpec), true
	})
	return resolver.ResolveAllowed(name, spec.Allowed, point.Clone())
}

// defaultExpr returns the spec's default expression, substituting a null
// of the declared type when none was given.
func defaultExpr(spec *config.ParamSpec) searchspace.SearchValue {
	if spec.Default != nil {
		return spec.Default
	}
	return searchspace.NewFixed(cty.NullVal(spec.Type))
}

// invalidError builds the invalid-point error, extracting the blocking
// parent combination when the offending expression is conditional.
func invalidError(name string, sv searchspace.SearchValue, point searchspace.Point) error {
	err := &InvalidSearchPointError{Parameter: name}
	if cond, ok := sv.(searchspace.Conditional); ok {
		err.Parents = cond.Parents
		err.ParentValues = make([]cty.Value, len(cond.Parents))
		for i, parent := range cond.Parents {
			err.ParentValues[i] = point[parent]
		}
	}
	return err
}

// prunedNames applies the definition's mode-specific pruning rules against
// the resolved point.
func prunedNames(def *config.PassDefinition, table *config.Table, point searchspace.Point) map[string]bool {
	pruned := make(map[string]bool)
	for _, rule := range def.Prune {
		parentVal, ok := point[rule.Parent]
		if !ok || !parentVal.RawEquals(rule.Equals) {
			continue
		}
		for _, group := range rule.Groups {
			for _, name := range table.Names() {
				if origin, _ := table.Origin(name); origin == group {
					pruned[name] = true
				}
			}
		}
	}
	return pruned
}

// foldExtraOptions merges the caller's free-form options under the exposed
// override parameters. The exposed parameter's resolved value always wins;
// every overwritten key is reported once, in sorted order.
func foldExtraOptions(def *config.PassDefinition, point searchspace.Point, exposed map[string]cty.Value, effective EffectiveConfig) ([]string, error) {
	if def.ExtraOptionsParam == "" {
		return nil, nil
	}

	options := map[string]cty.Value{}
	if raw, ok := point[def.ExtraOptionsParam]; ok && raw != cty.NilVal && raw.IsKnown() && !raw.IsNull() {
		ty := raw.Type()
		if !ty.IsObjectType() && !ty.IsMapType() {
			return nil, fmt.Errorf("parameter %q must be a mapping, got %s", def.ExtraOptionsParam, ty.FriendlyName())
		}
		options = raw.AsValueMap()
	}

	var overwritten []string
	for name := range exposed {
		if _, collides := options[name]; collides {
			overwritten = append(overwritten, name)
		}
	}
	sort.Strings(overwritten)

	var warnings []string
	for _, name := range overwritten {
		warnings = append(warnings, fmt.Sprintf(
			"extra option %q is exposed as a pass parameter; the parameter value %s overwrites it",
			name, FormatValue(exposed[name]),
		))
	}

	if err := mergo.Merge(&options, exposed, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("folding exposed parameters into %s: %w", def.ExtraOptionsParam, err)
	}
	if len(options) > 0 {
		effective[def.ExtraOptionsParam] = cty.ObjectVal(options)
	}
	return warnings, nil
}
