package quantization

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/quantgridgo/internal/config"
	"github.com/vk/quantgridgo/internal/registry"
	"github.com/vk/quantgridgo/internal/searchspace"
)

// Pass kind names.
const (
	KindQuantization = "quantization"
	KindDynamic      = "dynamic_quantization"
	KindStatic       = "static_quantization"
	KindMatMul4      = "matmul4_quantizer"
)

// Module registers the built-in quantization pass kinds.
type Module struct{}

// Register implements registry.Module.
func (m *Module) Register(r *registry.Registry) {
	r.Register(unifiedPass())
	r.Register(dynamicPass())
	r.Register(staticPass())
	r.Register(matMul4Pass())
}

// modeGroup builds the mode selector group. A searchable mode makes the
// unified pass explore both variants; the fixed variants pin it.
func modeGroup(defaultMode string, searchable bool) *config.ParamGroup {
	spec := &config.ParamSpec{
		Name:        "quant_mode",
		Type:        cty.String,
		Category:    config.CategoryPlain,
		Default:     searchspace.NewFixed(cty.StringVal(defaultMode)),
		Description: "Quantization mode. 'dynamic' for dynamic quantization, 'static' for static quantization.",
	}
	if searchable {
		spec.Allowed = searchspace.NewCategorical(cty.StringVal("dynamic"), cty.StringVal("static"))
	}
	return config.NewParamGroup(GroupMode, spec)
}

// quantBookkeeping lists the keys that steer resolution or the
// orchestrator and must never reach the quantizer.
func quantBookkeeping(static bool) []string {
	keys := []string{
		"quant_mode",
		"quant_preprocess",
		"save_as_external_data",
		"all_tensors_to_one_file",
		"external_data_name",
		"size_threshold",
	}
	if static {
		keys = append(keys, "user_script", "script_dir", "data_config", "prepare_qnn_config")
	}
	return keys
}

// unifiedPass is the searchable static/dynamic pass. The static-only
// groups are narrowed to quant_mode = "static"; under dynamic mode their
// parameters resolve to ignored and the groups are pruned outright.
func unifiedPass() *registry.RegisteredPass {
	return &registry.RegisteredPass{
		Definition: &config.PassDefinition{
			Kind:        KindQuantization,
			Description: "Quantize a model with static or dynamic quantization.",
			Groups: []*config.ParamGroup{
				modeGroup("static", true),
				commonGroup(),
				userScriptGroup(),
				staticDataloaderGroup(),
				conditionalizeStaticOptional(staticOptionalGroup()),
				exposedExtrasGroup(),
				extraOptionsGroup(),
				externalDataGroup(),
			},
			ExtraOptionsParam: "extra_options",
			ExposedGroup:      GroupExposedExtras,
			Bookkeeping:       quantBookkeeping(true),
			Prune: []config.PruneRule{
				{
					Parent: "quant_mode",
					Equals: cty.StringVal("dynamic"),
					Groups: []string{GroupStaticDataload, GroupStaticOptional},
				},
				{
					// The dataloader parameters are consumed by the
					// orchestrator's calibration boundary, not the quantizer.
					Parent: "quant_mode",
					Equals: cty.StringVal("static"),
					Groups: []string{GroupStaticDataload},
				},
			},
		},
		Rules:      quantizationRules(),
		SelectMode: registry.ModeFromParam("quant_mode"),
	}
}

// dynamicPass pins quant_mode to "dynamic" and omits the static groups
// from composition entirely.
func dynamicPass() *registry.RegisteredPass {
	return &registry.RegisteredPass{
		Definition: &config.PassDefinition{
			Kind:        KindDynamic,
			Description: "Quantize a model with dynamic quantization.",
			Groups: []*config.ParamGroup{
				modeGroup("dynamic", false),
				commonGroup(),
				exposedExtrasGroup(),
				extraOptionsGroup(),
				externalDataGroup(),
			},
			ExtraOptionsParam: "extra_options",
			ExposedGroup:      GroupExposedExtras,
			Bookkeeping:       quantBookkeeping(false),
		},
		Rules:      quantizationRules(),
		SelectMode: registry.FixedMode(registry.ModeDynamic),
	}
}

// staticPass pins quant_mode to "static"; the static groups apply
// unconditionally.
func staticPass() *registry.RegisteredPass {
	return &registry.RegisteredPass{
		Definition: &config.PassDefinition{
			Kind:        KindStatic,
			Description: "Quantize a model with static quantization.",
			Groups: []*config.ParamGroup{
				modeGroup("static", false),
				commonGroup(),
				userScriptGroup(),
				staticDataloaderGroup(),
				staticOptionalGroup(),
				exposedExtrasGroup(),
				extraOptionsGroup(),
				externalDataGroup(),
			},
			ExtraOptionsParam: "extra_options",
			ExposedGroup:      GroupExposedExtras,
			Bookkeeping:       quantBookkeeping(true),
			Prune: []config.PruneRule{
				{
					Parent: "quant_mode",
					Equals: cty.StringVal("static"),
					Groups: []string{GroupStaticDataload},
				},
			},
		},
		Rules:      quantizationRules(),
		SelectMode: registry.FixedMode(registry.ModeStatic),
	}
}

// matMul4Pass quantizes MatMul weights to 4 bits blockwise.
func matMul4Pass() *registry.RegisteredPass {
	return &registry.RegisteredPass{
		Definition: &config.PassDefinition{
			Kind:        KindMatMul4,
			Description: "Quantize MatMul weights to 4-bit blocks.",
			Groups: []*config.ParamGroup{
				matmul4Group(),
				externalDataGroup(),
			},
			Bookkeeping: []string{
				"save_as_external_data",
				"all_tensors_to_one_file",
				"external_data_name",
				"size_threshold",
			},
		},
		SelectMode: registry.FixedMode(registry.ModeMatMul4),
	}
}
