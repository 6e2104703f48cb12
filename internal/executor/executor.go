// Package executor orchestrates one pass run end to end: resolve the
// effective configuration, validate the point, gate on the external
// runtime version, optionally preprocess the input artifact through the
// content-hash cache, and dispatch exactly one external transformation
// call for the resolved mode.
package executor

import (
	"context"

	"github.com/vk/quantgridgo/internal/resolve"
)

// State is the lifecycle position of one run.
type State string

const (
	StatePreparing State = "preparing"
	StateExecuting State = "executing"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Request carries one external transformation call's inputs: the stripped
// effective configuration plus the input and output artifact paths.
type Request struct {
	Config     resolve.EffectiveConfig
	InputPath  string
	OutputPath string
	// ExternalData enables externalized large-tensor storage for the
	// output artifact.
	ExternalData bool
}

// Quantizer is the external transformation collaborator. Implementations
// wrap the numerical quantization library; this repository ships none.
//
// Failures of the transformation itself must be returned wrapping
// ErrQuantizer; any other error is treated as a programming error and
// propagates to the caller unmodified.
type Quantizer interface {
	QuantizeStatic(ctx context.Context, req *Request) error
	QuantizeDynamic(ctx context.Context, req *Request) error
	QuantizeMatMul4(ctx context.Context, req *Request) error
}

// Preprocessor performs shape inference and model optimization on the
// input artifact in preparation for quantization.
type Preprocessor interface {
	Preprocess(ctx context.Context, inputPath, outputPath string) error
}
