package quantization

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/quantgridgo/internal/validate"
)

// quantizationRules builds the rule set shared by the quantization pass
// kinds. Rules match on resolved values; a rule whose parameters are
// absent from the point never fires.
func quantizationRules() *validate.Set {
	return validate.NewSet(
		// S8S8 with QOperator is legal but will be slow on x86-64 CPUs and
		// should be avoided in general. Callers may still try it at their
		// own risk; the point is accepted with a warning.
		validate.Combination(
			"s8s8-qoperator",
			"S8S8 with QOperator will be slow on x86-64 CPUs and should be avoided in general, try QDQ instead",
			false,
			validate.Cond{Param: "weight_type", Equals: cty.StringVal("QInt8")},
			validate.Cond{Param: "activation_type", Equals: cty.StringVal("QInt8")},
			validate.Cond{Param: "quant_format", Equals: cty.StringVal("QOperator")},
		),
		validate.Combination(
			"subgraph-static",
			"EnableSubgraph is not supported for static quantization",
			true,
			validate.Cond{Param: "quant_mode", Equals: cty.StringVal("static")},
			validate.Cond{Param: "EnableSubgraph", Equals: cty.True},
		),
	)
}
