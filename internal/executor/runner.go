package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/quantgridgo/internal/cache"
	"github.com/vk/quantgridgo/internal/ctxlog"
	"github.com/vk/quantgridgo/internal/registry"
	"github.com/vk/quantgridgo/internal/resolve"
	"github.com/vk/quantgridgo/internal/searchspace"
	"github.com/vk/quantgridgo/internal/validate"
)

// Well-known parameter names the orchestrator steers on. They are part of
// the quantization parameter tables' public contract.
const (
	ParamQuantMode        = "quant_mode"
	ParamQuantPreprocess  = "quant_preprocess"
	ParamDataloaderFunc   = "dataloader_func"
	ParamDataConfig       = "data_config"
	ParamPrepareQNNConfig = "prepare_qnn_config"
	ParamOptimizeModel    = "optimize_model"
	ParamSaveExternalData = "save_as_external_data"
)

var (
	constraintQNNConfig = mustConstraint(">= 1.17.0")
	constraintMatMul4   = mustConstraint(">= 1.16.2")
	// optimize_model was removed from the external runtime in 1.16.0; for
	// older runtimes it must be pinned off because preprocessing already
	// covers optimization.
	versionOptimizeRemoved = semver.MustParse("1.16.0")
)

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Config holds the collaborators a Runner needs.
type Config struct {
	Registry  *registry.Registry
	Quantizer Quantizer
	// Preprocessor and Cache are optional as a pair: with both set, runs
	// whose point enables preprocessing go through the cache first.
	Preprocessor Preprocessor
	Cache        cache.ArtifactCache
	// RuntimeVersion is the detected version of the external runtime.
	RuntimeVersion *semver.Version
}

// Runner executes pass runs. It is stateless between runs; concurrent runs
// share nothing but the artifact cache.
type Runner struct {
	cfg Config
}

// NewRunner validates the collaborator wiring and creates a Runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Registry == nil {
		return nil, errors.New("executor: Registry is required")
	}
	if cfg.Quantizer == nil {
		return nil, errors.New("executor: Quantizer is required")
	}
	if cfg.RuntimeVersion == nil {
		return nil, errors.New("executor: RuntimeVersion is required")
	}
	if cfg.Preprocessor != nil && cfg.Cache == nil {
		return nil, errors.New("executor: Preprocessor requires a Cache")
	}
	return &Runner{cfg: cfg}, nil
}

// RunSpec identifies one run: the pass kind, the search point under
// evaluation, and the input/output artifact paths.
type RunSpec struct {
	Kind       string
	Point      searchspace.Point
	InputPath  string
	OutputPath string
}

// Result is the outcome of a run that did not fail. A rejected or invalid
// point completes with Accepted=false; that is a negative evaluation
// result, not an error.
type Result struct {
	State     State
	Accepted  bool
	Reason    string
	Warnings  []string
	Effective resolve.EffectiveConfig
	// OutputPath is the produced artifact, set only for accepted runs.
	OutputPath string
}

// Run executes one pass run through the Preparing and Executing states.
func (r *Runner) Run(ctx context.Context, spec RunSpec) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	pass, ok := r.cfg.Registry.Lookup(spec.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown pass kind %q", spec.Kind)
	}

	// PREPARING: resolve and validate before touching anything external.
	logger.Debug("Run entering preparing state.", "kind", spec.Kind)
	res, err := resolve.Build(ctx, pass.Definition, spec.Point)
	if err != nil {
		var invalid *resolve.InvalidSearchPointError
		if errors.As(err, &invalid) {
			logger.Info("Search point is not evaluable.", "kind", spec.Kind, "reason", invalid.Error())
			return &Result{State: StateDone, Accepted: false, Reason: invalid.Error()}, nil
		}
		return nil, err
	}

	warnings := append([]string(nil), res.Warnings...)
	if pass.Rules != nil {
		verdict := pass.Rules.Validate(res.Point)
		warnings = append(warnings, verdict.Warnings...)
		if !verdict.OK {
			reason := (&validate.RejectedError{Rule: verdict.Rule, Reason: verdict.Reason}).Error()
			logger.Info("Search point rejected by validator.", "kind", spec.Kind, "rule", verdict.Rule)
			return &Result{State: StateDone, Accepted: false, Reason: reason, Warnings: warnings}, nil
		}
	}
	for _, warning := range warnings {
		logger.Warn(warning)
	}

	mode, err := pass.SelectMode(res.Point)
	if err != nil {
		return nil, err
	}

	if err := r.checkFeatureVersions(mode, res.Point); err != nil {
		return nil, err
	}
	if err := checkCalibrationSource(mode, res.Point); err != nil {
		return nil, err
	}
	if r.cfg.RuntimeVersion.LessThan(versionOptimizeRemoved) {
		res.Effective[ParamOptimizeModel] = cty.False
	}

	inputPath := spec.InputPath
	if isTrue(res.Point[ParamQuantPreprocess]) && r.cfg.Preprocessor != nil {
		inputPath = r.preprocess(ctx, spec.InputPath)
	}

	// EXECUTING: exactly one external transformation call.
	logger.Debug("Run entering executing state.", "kind", spec.Kind, "mode", mode)
	req := &Request{
		Config:       res.Effective,
		InputPath:    inputPath,
		OutputPath:   spec.OutputPath,
		ExternalData: isTrue(res.Point[ParamSaveExternalData]),
	}
	if err := r.dispatch(ctx, mode, req); err != nil {
		if errors.Is(err, ErrQuantizer) {
			return nil, &TransformationFailedError{Mode: mode, Cause: err}
		}
		return nil, err
	}

	logger.Info("Run complete.", "kind", spec.Kind, "mode", mode, "output", spec.OutputPath)
	return &Result{
		State:      StateDone,
		Accepted:   true,
		Warnings:   warnings,
		Effective:  res.Effective,
		OutputPath: spec.OutputPath,
	}, nil
}

// checkFeatureVersions gates requested capabilities on the detected
// external runtime version. Violations are fatal configuration errors
// raised before any external call.
func (r *Runner) checkFeatureVersions(mode registry.Mode, point searchspace.Point) error {
	detected := r.cfg.RuntimeVersion
	if mode == registry.ModeMatMul4 && !constraintMatMul4.Check(detected) {
		return &UnsupportedFeatureVersionError{
			Feature:  "matmul 4-bit quantization",
			Required: constraintMatMul4.String(),
			Detected: detected,
		}
	}
	if isTrue(point[ParamPrepareQNNConfig]) && !constraintQNNConfig.Check(detected) {
		return &UnsupportedFeatureVersionError{
			Feature:  ParamPrepareQNNConfig,
			Required: constraintQNNConfig.String(),
			Detected: detected,
		}
	}
	return nil
}

// checkCalibrationSource enforces the calibration boundary: a static run
// needs exactly one of the dataloader function or the declarative data
// config.
func checkCalibrationSource(mode registry.Mode, point searchspace.Point) error {
	if mode != registry.ModeStatic {
		return nil
	}
	hasFunc := isSupplied(point[ParamDataloaderFunc])
	hasConfig := isSupplied(point[ParamDataConfig])
	switch {
	case hasFunc && hasConfig:
		return &ConfigurationError{Reason: "static quantization accepts either dataloader_func or data_config, not both"}
	case !hasFunc && !hasConfig:
		return &ConfigurationError{Reason: "static quantization requires dataloader_func or data_config"}
	}
	return nil
}

// preprocess runs the input artifact through the content-hash cache. Any
// preprocessing failure falls back to the original artifact; quantizing an
// unoptimized model is valid, just slower.
func (r *Runner) preprocess(ctx context.Context, inputPath string) string {
	logger := ctxlog.FromContext(ctx)

	key, err := cache.HashPath(inputPath)
	if err != nil {
		logger.Warn("Failed to key preprocessing cache; using original model.", "error", err)
		return inputPath
	}
	if cached, ok := r.cfg.Cache.Lookup(key); ok {
		logger.Info("Already preprocessed model, skipping preprocessing.", "path", cached)
		return cached
	}

	target, err := r.cfg.Cache.Reserve(key)
	if err != nil {
		logger.Warn("Failed to reserve preprocessing cache entry; using original model.", "error", err)
		return inputPath
	}
	logger.Info("Preprocessing model for quantization.", "input", inputPath)
	if err := r.cfg.Preprocessor.Preprocess(ctx, inputPath, target); err != nil {
		logger.Warn("Failed to preprocess model; using original model.", "error", err)
		return inputPath
	}
	return target
}

func (r *Runner) dispatch(ctx context.Context, mode registry.Mode, req *Request) error {
	switch mode {
	case registry.ModeStatic:
		return r.cfg.Quantizer.QuantizeStatic(ctx, req)
	case registry.ModeDynamic:
		return r.cfg.Quantizer.QuantizeDynamic(ctx, req)
	case registry.ModeMatMul4:
		return r.cfg.Quantizer.QuantizeMatMul4(ctx, req)
	default:
		return fmt.Errorf("no dispatch for mode %q", mode)
	}
}

func isTrue(v cty.Value) bool {
	return v != cty.NilVal && v.IsKnown() && !v.IsNull() && v.Type() == cty.Bool && v.True()
}

func isSupplied(v cty.Value) bool {
	return v != cty.NilVal && v.IsKnown() && !v.IsNull() && !searchspace.IsSentinel(v)
}
