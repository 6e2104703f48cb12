package quantization

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/quantgridgo/internal/config"
	"github.com/vk/quantgridgo/internal/searchspace"
)

// Group names. Composition order per pass kind lives in passes.go; these
// names are also the unit of mode-specific pruning.
const (
	GroupMode           = "mode"
	GroupCommon         = "common"
	GroupUserScript     = "user_script"
	GroupStaticDataload = "static_dataloader"
	GroupStaticOptional = "static_optional"
	GroupExposedExtras  = "exposed_extra_options"
	GroupExtraOptions   = "extra_options"
	GroupExternalData   = "external_data"
	GroupMatMul4        = "matmul4"
)

// commonGroup holds the options shared by static and dynamic quantization.
func commonGroup() *config.ParamGroup {
	return config.NewParamGroup(GroupCommon,
		&config.ParamSpec{
			Name:     "weight_type",
			Type:     cty.String,
			Category: config.CategoryPlain,
			Default:  searchspace.NewFixed(cty.StringVal("QInt8")),
			Allowed:  searchspace.NewCategorical(cty.StringVal("QInt8"), cty.StringVal("QUInt8")),
			Description: "Data type for quantizing weights. 'QInt8' for signed 8-bit integer, " +
				"'QUInt8' for unsigned 8-bit integer.",
		},
		&config.ParamSpec{
			Name:        "op_types_to_quantize",
			Type:        cty.List(cty.String),
			Category:    config.CategoryPlain,
			Description: "List of operator types to quantize. If unset, all quantizable.",
		},
		&config.ParamSpec{
			Name:        "nodes_to_quantize",
			Type:        cty.List(cty.String),
			Category:    config.CategoryPlain,
			Description: "List of node names to quantize. If unset, all quantizable.",
		},
		&config.ParamSpec{
			Name:        "nodes_to_exclude",
			Type:        cty.List(cty.String),
			Category:    config.CategoryPlain,
			Description: "List of node names to exclude from quantization. If unset, all quantizable.",
		},
		&config.ParamSpec{
			Name:        "per_channel",
			Type:        cty.Bool,
			Category:    config.CategoryPlain,
			Default:     searchspace.NewFixed(cty.False),
			Allowed:     searchspace.Boolean(),
			Description: "Quantize weights per channel.",
		},
		&config.ParamSpec{
			Name:     "reduce_range",
			Type:     cty.Bool,
			Category: config.CategoryPlain,
			Default:  searchspace.NewFixed(cty.False),
			Allowed:  searchspace.Boolean(),
			Description: "Quantize weights with 7-bits. It may improve the accuracy for some models " +
				"running on non-VNNI machines, especially for per-channel mode.",
		},
		&config.ParamSpec{
			Name:        "quant_preprocess",
			Type:        cty.Bool,
			Category:    config.CategoryPlain,
			Default:     searchspace.NewFixed(cty.True),
			Allowed:     searchspace.Boolean(),
			Description: "Shape inference and model optimization, in preparation for quantization.",
		},
	)
}

// userScriptGroup holds the script-location hints consumed when resolving
// caller function references. They never reach the execution boundary.
func userScriptGroup() *config.ParamGroup {
	return config.NewParamGroup(GroupUserScript,
		&config.ParamSpec{
			Name:        "user_script",
			Type:        cty.String,
			Category:    config.CategoryData,
			Description: "Path to the script exposing caller-defined functions such as dataloader_func.",
		},
		&config.ParamSpec{
			Name:        "script_dir",
			Type:        cty.String,
			Category:    config.CategoryData,
			Description: "Directory the user script and its helpers are loaded from.",
		},
	)
}

// staticDataloaderGroup holds the calibration data boundary of static
// quantization. Exactly one of dataloader_func and data_config must be
// supplied when the mode requires calibration.
func staticDataloaderGroup() *config.ParamGroup {
	return config.NewParamGroup(GroupStaticDataload,
		&config.ParamSpec{
			Name:     "data_dir",
			Type:     cty.String,
			Category: config.CategoryData,
			Description: "Path to the directory containing the dataset. Required for static " +
				"quantization when dataloader_func is provided.",
		},
		&config.ParamSpec{
			Name:        "batch_size",
			Type:        cty.Number,
			Category:    config.CategoryPlain,
			Default:     searchspace.NewFixed(cty.NumberIntVal(1)),
			Description: "Batch size for calibration, only used if dataloader_func is provided.",
		},
		&config.ParamSpec{
			Name:     "dataloader_func",
			Type:     cty.DynamicPseudoType,
			Category: config.CategoryObject,
			Description: "Function producing the calibration dataloader. Required for static " +
				"quantization when data_config is unset.",
		},
		&config.ParamSpec{
			Name:        "dataloader_func_kwargs",
			Type:        cty.DynamicPseudoType,
			Category:    config.CategoryPlain,
			Description: "Keyword arguments for dataloader_func.",
		},
		&config.ParamSpec{
			Name:     "data_config",
			Type:     cty.DynamicPseudoType,
			Category: config.CategoryPlain,
			Description: "Declarative data source for calibration. Required for static " +
				"quantization when dataloader_func is unset.",
		},
	)
}

// staticOptionalGroup holds the static-only knobs. In the unified pass the
// whole group is narrowed to apply only under quant_mode = "static".
func staticOptionalGroup() *config.ParamGroup {
	return config.NewParamGroup(GroupStaticOptional,
		&config.ParamSpec{
			Name:     "calibrate_method",
			Type:     cty.String,
			Category: config.CategoryPlain,
			Default:  searchspace.NewFixed(cty.StringVal("MinMax")),
			Allowed: searchspace.NewCategorical(
				cty.StringVal("MinMax"), cty.StringVal("Entropy"), cty.StringVal("Percentile"),
			),
			Description: "Calibration method. Percentile is not supported on runtime 1.16.0; avoid " +
				"setting or searching it there.",
		},
		&config.ParamSpec{
			Name:     "quant_format",
			Type:     cty.String,
			Category: config.CategoryPlain,
			Default:  searchspace.NewFixed(cty.StringVal("QDQ")),
			Allowed:  searchspace.NewCategorical(cty.StringVal("QOperator"), cty.StringVal("QDQ")),
			Description: "QOperator format quantizes the model with quantized operators directly. " +
				"QDQ format inserts QuantizeLinear/DeQuantizeLinear on the tensor.",
		},
		&config.ParamSpec{
			Name:     "activation_type",
			Type:     cty.String,
			Category: config.CategoryPlain,
			// The default and the choice set are conditional on quant_format
			// and weight_type. The equivalent joint space for (quant_format,
			// weight_type, activation_type) is {(QDQ, QInt8, QInt8), (QDQ,
			// QUInt8, QUInt8), (QOperator, QUInt8, QUInt8)}; combinations
			// outside it resolve the default to the invalid outcome.
			Default: searchspace.NewConditional(
				[]string{"quant_format", "weight_type"},
				[]searchspace.Case{
					{
						Key:  []cty.Value{cty.StringVal("QDQ"), cty.StringVal("QInt8")},
						Then: searchspace.NewFixed(cty.StringVal("QInt8")),
					},
					{
						Key:  []cty.Value{cty.StringVal("QDQ"), cty.StringVal("QUInt8")},
						Then: searchspace.NewFixed(cty.StringVal("QUInt8")),
					},
					{
						Key:  []cty.Value{cty.StringVal("QOperator"), cty.StringVal("QUInt8")},
						Then: searchspace.NewFixed(cty.StringVal("QUInt8")),
					},
				},
				searchspace.NewFixed(searchspace.Invalid()),
			),
			Allowed: searchspace.NewConditional(
				[]string{"quant_format", "weight_type"},
				[]searchspace.Case{
					{
						Key:  []cty.Value{cty.StringVal("QDQ"), cty.StringVal("QInt8")},
						Then: searchspace.NewCategorical(cty.StringVal("QInt8")),
					},
					{
						Key:  []cty.Value{cty.StringVal("QDQ"), cty.StringVal("QUInt8")},
						Then: searchspace.NewCategorical(cty.StringVal("QUInt8")),
					},
					{
						Key:  []cty.Value{cty.StringVal("QOperator"), cty.StringVal("QUInt8")},
						Then: searchspace.NewCategorical(cty.StringVal("QUInt8")),
					},
					{
						Key:  []cty.Value{cty.StringVal("QOperator"), cty.StringVal("QInt8")},
						Then: searchspace.InvalidChoice(),
					},
				},
				searchspace.InvalidChoice(),
			),
			Description: "Quantization data type of activation.",
		},
		&config.ParamSpec{
			Name:     "prepare_qnn_config",
			Type:     cty.Bool,
			Category: config.CategoryPlain,
			Default:  searchspace.NewFixed(cty.False),
			Description: "Whether to generate a quantization config suited for the QNN execution " +
				"provider from the input model.",
		},
	)
}

// exposedExtrasGroup holds option-map keys that are individually exposed
// as typed parameters. Their resolved values are folded back into the
// options map and always win over caller-supplied entries.
func exposedExtrasGroup() *config.ParamGroup {
	return config.NewParamGroup(GroupExposedExtras,
		&config.ParamSpec{
			Name:     "extra.Sigmoid.nnapi",
			Type:     cty.Bool,
			Category: config.CategoryPlain,
			Default:  searchspace.NewFixed(cty.False),
		},
		&config.ParamSpec{
			Name:        "ActivationSymmetric",
			Type:        cty.Bool,
			Category:    config.CategoryPlain,
			Default:     searchspace.NewFixed(cty.False),
			Description: "Symmetrize calibration data for activations.",
		},
		&config.ParamSpec{
			Name:        "WeightSymmetric",
			Type:        cty.Bool,
			Category:    config.CategoryPlain,
			Default:     searchspace.NewFixed(cty.True),
			Description: "Symmetrize calibration data for weights.",
		},
		&config.ParamSpec{
			Name:        "EnableSubgraph",
			Type:        cty.Bool,
			Category:    config.CategoryPlain,
			Default:     searchspace.NewFixed(cty.False),
			Description: "If enabled, subgraphs will be quantized. Currently only supported in dynamic mode.",
		},
		&config.ParamSpec{
			Name:     "ForceQuantizeNoInputCheck",
			Type:     cty.Bool,
			Category: config.CategoryPlain,
			Default:  searchspace.NewFixed(cty.False),
			Description: "Force latent operators like maxpool and transpose to quantize their " +
				"inputs even when not already quantized.",
		},
		&config.ParamSpec{
			Name:     "MatMulConstBOnly",
			Type:     cty.Bool,
			Category: config.CategoryPlain,
			Default: searchspace.NewConditional(
				[]string{"quant_mode"},
				[]searchspace.Case{
					{Key: []cty.Value{cty.StringVal("dynamic")}, Then: searchspace.NewFixed(cty.True)},
					{Key: []cty.Value{cty.StringVal("static")}, Then: searchspace.NewFixed(cty.False)},
				},
				nil,
			),
			Description: "If enabled, only MatMul with const B will be quantized.",
		},
	)
}

// extraOptionsGroup holds the free-form pass-through options map.
func extraOptionsGroup() *config.ParamGroup {
	return config.NewParamGroup(GroupExtraOptions,
		&config.ParamSpec{
			Name:     "extra_options",
			Type:     cty.DynamicPseudoType,
			Category: config.CategoryPlain,
			Description: "Key/value mapping of additional quantizer options. Keys that are also " +
				"exposed as pass parameters are overwritten by the parameter values.",
		},
	)
}

// externalDataGroup holds the output storage layout options. They steer
// artifact writing, not the quantizer call, and are stripped before the
// execution boundary.
func externalDataGroup() *config.ParamGroup {
	return config.NewParamGroup(GroupExternalData,
		&config.ParamSpec{
			Name:        "save_as_external_data",
			Type:        cty.Bool,
			Category:    config.CategoryPlain,
			Default:     searchspace.NewFixed(cty.False),
			Description: "Store large tensors outside the model file.",
		},
		&config.ParamSpec{
			Name:        "all_tensors_to_one_file",
			Type:        cty.Bool,
			Category:    config.CategoryPlain,
			Default:     searchspace.NewFixed(cty.True),
			Description: "Store all externalized tensors in one file instead of one file per tensor.",
		},
		&config.ParamSpec{
			Name:        "external_data_name",
			Type:        cty.String,
			Category:    config.CategoryPlain,
			Description: "File name for the externalized tensors; defaults to the model name with a .data suffix.",
		},
		&config.ParamSpec{
			Name:        "size_threshold",
			Type:        cty.Number,
			Category:    config.CategoryPlain,
			Default:     searchspace.NewFixed(cty.NumberIntVal(1024)),
			Description: "Minimum tensor size in bytes for externalization.",
		},
	)
}

// matmul4Group holds the matmul 4-bit weight quantizer's options.
func matmul4Group() *config.ParamGroup {
	return config.NewParamGroup(GroupMatMul4,
		&config.ParamSpec{
			Name:        "block_size",
			Type:        cty.Number,
			Category:    config.CategoryPlain,
			Default:     searchspace.NewFixed(cty.NumberIntVal(32)),
			Description: "Block size for quantization.",
		},
		&config.ParamSpec{
			Name:        "is_symmetric",
			Type:        cty.Bool,
			Category:    config.CategoryPlain,
			Default:     searchspace.NewFixed(cty.True),
			Description: "Symmetric quantization.",
		},
		&config.ParamSpec{
			Name:        "nodes_to_exclude",
			Type:        cty.List(cty.String),
			Category:    config.CategoryPlain,
			Description: "List of node names to exclude from quantization.",
		},
	)
}

// conditionalizeStaticOptional narrows every parameter of the static
// optional group to apply only when quant_mode is "static"; under any
// other mode both the default and the choice set resolve to ignored.
func conditionalizeStaticOptional(group *config.ParamGroup) *config.ParamGroup {
	static := cty.StringVal("static")
	out := group.Clone()
	for _, spec := range out.Specs {
		def := spec.Default
		if def == nil {
			def = searchspace.NewFixed(cty.NullVal(spec.Type))
		}
		spec.Default = searchspace.NewConditional(
			[]string{"quant_mode"},
			[]searchspace.Case{{Key: []cty.Value{static}, Then: def}},
			searchspace.NewFixed(searchspace.Ignored()),
		)

		switch allowed := spec.Allowed.(type) {
		case searchspace.Categorical:
			spec.Allowed = searchspace.NewConditional(
				[]string{"quant_mode"},
				[]searchspace.Case{{Key: []cty.Value{static}, Then: allowed}},
				searchspace.IgnoredChoice(),
			)
		case searchspace.Conditional:
			spec.Allowed = searchspace.PrependParent(allowed, "quant_mode", static, searchspace.IgnoredChoice())
		}
	}
	return out
}
