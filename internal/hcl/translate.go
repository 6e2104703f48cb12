// This file contains the logic for translating HCL manifest blocks into
// the format-agnostic configuration model defined in the config package.

package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/quantgridgo/internal/config"
	"github.com/vk/quantgridgo/internal/registry"
	"github.com/vk/quantgridgo/internal/schema"
	"github.com/vk/quantgridgo/internal/searchspace"
	"github.com/vk/quantgridgo/internal/validate"
)

// translatePass converts one pass block into a complete registration.
func translatePass(ctx context.Context, block *schema.PassBlock) (*registry.RegisteredPass, error) {
	def := &config.PassDefinition{
		Kind:              block.Kind,
		Description:       block.Description,
		ExtraOptionsParam: block.ExtraOptionsParam,
		ExposedGroup:      block.ExposedGroup,
		Bookkeeping:       block.Bookkeeping,
	}

	for _, groupBlock := range block.Groups {
		group := config.NewParamGroup(groupBlock.Name)
		for _, paramBlock := range groupBlock.Params {
			spec, err := translateParam(ctx, paramBlock)
			if err != nil {
				return nil, fmt.Errorf("pass %q, group %q: %w", block.Kind, groupBlock.Name, err)
			}
			group.Specs = append(group.Specs, spec)
		}
		def.Groups = append(def.Groups, group)
	}

	for _, pruneBlock := range block.Prune {
		equals, err := evalValue(pruneBlock.Equals)
		if err != nil {
			return nil, fmt.Errorf("pass %q, prune rule: %w", block.Kind, err)
		}
		def.Prune = append(def.Prune, config.PruneRule{
			Parent: pruneBlock.Parent,
			Equals: equals,
			Groups: pruneBlock.Groups,
		})
	}

	selector, err := translateMode(block)
	if err != nil {
		return nil, fmt.Errorf("pass %q: %w", block.Kind, err)
	}

	rules, err := translateRules(block)
	if err != nil {
		return nil, fmt.Errorf("pass %q: %w", block.Kind, err)
	}

	return &registry.RegisteredPass{Definition: def, Rules: rules, SelectMode: selector}, nil
}

// translateParam converts a param block, applying its conditional blocks
// on top of the plain default/allowed attributes.
func translateParam(ctx context.Context, block *schema.ParamBlock) (*config.ParamSpec, error) {
	paramType, err := typeExprToCtyType(ctx, block.Type)
	if err != nil {
		return nil, fmt.Errorf("param %q: %w", block.Name, err)
	}

	category, err := translateCategory(block.Category)
	if err != nil {
		return nil, fmt.Errorf("param %q: %w", block.Name, err)
	}

	spec := &config.ParamSpec{
		Name:        block.Name,
		Type:        paramType,
		Category:    category,
		Description: block.Description,
	}

	if isSet(block.Default) {
		val, err := evalValue(block.Default)
		if err != nil {
			return nil, fmt.Errorf("param %q, default: %w", block.Name, err)
		}
		spec.Default = searchspace.NewFixed(val)
	}
	if isSet(block.Allowed) {
		vals, err := evalValueList(block.Allowed)
		if err != nil {
			return nil, fmt.Errorf("param %q, allowed: %w", block.Name, err)
		}
		spec.Allowed = searchspace.NewCategorical(vals...)
	}

	for _, condBlock := range block.Conditionals {
		cond, err := translateConditional(condBlock)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", block.Name, err)
		}
		switch condBlock.Target {
		case "default":
			spec.Default = cond
		case "allowed":
			spec.Allowed = cond
		default:
			return nil, fmt.Errorf("param %q: conditional target must be \"default\" or \"allowed\", got %q", block.Name, condBlock.Target)
		}
	}
	return spec, nil
}

// translateConditional converts a conditional block into the search value
// lookup table.
func translateConditional(block *schema.ConditionalBlock) (searchspace.SearchValue, error) {
	if len(block.Parents) == 0 {
		return nil, fmt.Errorf("conditional %q: parents must not be empty", block.Target)
	}

	cases := make([]searchspace.Case, 0, len(block.Cases))
	for i, caseBlock := range block.Cases {
		key, err := evalValueList(caseBlock.When)
		if err != nil {
			return nil, fmt.Errorf("conditional %q, case %d: %w", block.Target, i, err)
		}
		if len(key) != len(block.Parents) {
			return nil, fmt.Errorf(
				"conditional %q, case %d: when has %d values for %d parents",
				block.Target, i, len(key), len(block.Parents),
			)
		}
		outcome, err := translateOutcome(caseBlock.Value, caseBlock.Values, caseBlock.Invalid, caseBlock.Ignored)
		if err != nil {
			return nil, fmt.Errorf("conditional %q, case %d: %w", block.Target, i, err)
		}
		if outcome == nil {
			return nil, fmt.Errorf("conditional %q, case %d: one of value, values, invalid, ignored is required", block.Target, i)
		}
		cases = append(cases, searchspace.Case{Key: key, Then: outcome})
	}

	fallback, err := translateOutcome(block.Value, block.Values, block.Invalid, block.Ignored)
	if err != nil {
		return nil, fmt.Errorf("conditional %q, fallback: %w", block.Target, err)
	}
	return searchspace.NewConditional(block.Parents, cases, fallback), nil
}

// translateOutcome converts one branch outcome. A nil result means no
// outcome was declared, which is only legal for a conditional's fallback.
func translateOutcome(value, values hcl.Expression, invalid, ignored bool) (searchspace.SearchValue, error) {
	set := 0
	if isSet(value) {
		set++
	}
	if isSet(values) {
		set++
	}
	if invalid {
		set++
	}
	if ignored {
		set++
	}
	if set > 1 {
		return nil, fmt.Errorf("value, values, invalid and ignored are mutually exclusive")
	}

	switch {
	case invalid:
		return searchspace.InvalidChoice(), nil
	case ignored:
		return searchspace.IgnoredChoice(), nil
	case isSet(value):
		val, err := evalValue(value)
		if err != nil {
			return nil, err
		}
		return searchspace.NewFixed(val), nil
	case isSet(values):
		vals, err := evalValueList(values)
		if err != nil {
			return nil, err
		}
		return searchspace.NewCategorical(vals...), nil
	default:
		return nil, nil
	}
}

func translateCategory(category string) (config.ParamCategory, error) {
	switch category {
	case "", string(config.CategoryPlain):
		return config.CategoryPlain, nil
	case string(config.CategoryData):
		return config.CategoryData, nil
	case string(config.CategoryObject):
		return config.CategoryObject, nil
	default:
		return "", fmt.Errorf("unknown category %q", category)
	}
}

func translateMode(block *schema.PassBlock) (registry.ModeSelector, error) {
	switch {
	case block.Mode != "" && block.ModeParam != "":
		return nil, fmt.Errorf("mode and mode_param are mutually exclusive")
	case block.ModeParam != "":
		return registry.ModeFromParam(block.ModeParam), nil
	case block.Mode != "":
		switch mode := registry.Mode(block.Mode); mode {
		case registry.ModeStatic, registry.ModeDynamic, registry.ModeMatMul4:
			return registry.FixedMode(mode), nil
		default:
			return nil, fmt.Errorf("unknown mode %q", block.Mode)
		}
	default:
		return nil, fmt.Errorf("one of mode or mode_param is required")
	}
}

func translateRules(block *schema.PassBlock) (*validate.Set, error) {
	if len(block.Rules) == 0 {
		return nil, nil
	}
	set := validate.NewSet()
	for _, ruleBlock := range block.Rules {
		conds := make([]validate.Cond, 0, len(ruleBlock.When))
		for _, whenBlock := range ruleBlock.When {
			equals, err := evalValue(whenBlock.Equals)
			if err != nil {
				return nil, fmt.Errorf("rule %q, when %q: %w", ruleBlock.Name, whenBlock.Param, err)
			}
			conds = append(conds, validate.Cond{Param: whenBlock.Param, Equals: equals})
		}
		set.Add(validate.Combination(ruleBlock.Name, ruleBlock.Message, ruleBlock.Reject, conds...))
	}
	return set, nil
}

// isSet reports whether an optional expression attribute was present in
// the source. gohcl leaves absent attributes as nil expressions or
// expressions evaluating to null.
func isSet(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		// An expression that needs evaluation context was definitely set.
		return true
	}
	return !val.IsNull()
}

// evalValue evaluates a manifest expression to a constant value.
func evalValue(expr hcl.Expression) (cty.Value, error) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("evaluating expression: %w", diags)
	}
	return val, nil
}

// evalValueList evaluates a manifest expression to a list of constant
// values.
func evalValueList(expr hcl.Expression) ([]cty.Value, error) {
	val, err := evalValue(expr)
	if err != nil {
		return nil, err
	}
	if val.IsNull() || !val.CanIterateElements() {
		return nil, fmt.Errorf("expression must be a list of values")
	}
	var out []cty.Value
	for it := val.ElementIterator(); it.Next(); {
		_, element := it.Element()
		out = append(out, element)
	}
	return out, nil
}
