package executor

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/vk/quantgridgo/internal/registry"
)

// ErrQuantizer is the documented failure kind for Quantizer
// implementations: every error caused by the transformation itself must
// wrap it. The orchestrator re-wraps only these as TransformationFailed;
// everything else propagates unmodified.
var ErrQuantizer = errors.New("quantizer failure")

// TransformationFailedError reports a failed external transformation call.
// It is fatal to the run and always carries the original cause.
type TransformationFailedError struct {
	Mode  registry.Mode
	Cause error
}

func (e *TransformationFailedError) Error() string {
	return fmt.Sprintf("%s quantization failed: %v", e.Mode, e.Cause)
}

func (e *TransformationFailedError) Unwrap() error {
	return e.Cause
}

// UnsupportedFeatureVersionError reports a requested capability that needs
// a newer external runtime than the one detected. It is raised before any
// external call and is not retriable.
type UnsupportedFeatureVersionError struct {
	Feature  string
	Required string
	Detected *semver.Version
}

func (e *UnsupportedFeatureVersionError) Error() string {
	return fmt.Sprintf(
		"%s requires external runtime %s, detected %s",
		e.Feature, e.Required, e.Detected,
	)
}

// ConfigurationError reports a structurally incomplete run setup, such as
// a static-mode run with no calibration source. It is raised before any
// external call.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return e.Reason
}
