package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/quantgridgo/internal/cache"
	"github.com/vk/quantgridgo/internal/quantization"
	"github.com/vk/quantgridgo/internal/registry"
	"github.com/vk/quantgridgo/internal/searchspace"
)

// fakeQuantizer records dispatched calls and returns a configured error.
type fakeQuantizer struct {
	calls   []registry.Mode
	lastReq *Request
	err     error
}

func (q *fakeQuantizer) QuantizeStatic(_ context.Context, req *Request) error {
	q.calls = append(q.calls, registry.ModeStatic)
	q.lastReq = req
	return q.err
}

func (q *fakeQuantizer) QuantizeDynamic(_ context.Context, req *Request) error {
	q.calls = append(q.calls, registry.ModeDynamic)
	q.lastReq = req
	return q.err
}

func (q *fakeQuantizer) QuantizeMatMul4(_ context.Context, req *Request) error {
	q.calls = append(q.calls, registry.ModeMatMul4)
	q.lastReq = req
	return q.err
}

// fakePreprocessor writes a marker file so the cache lookup hits afterwards.
type fakePreprocessor struct {
	calls int
	err   error
}

func (p *fakePreprocessor) Preprocess(_ context.Context, _, outputPath string) error {
	p.calls++
	if p.err != nil {
		return p.err
	}
	return os.WriteFile(outputPath, []byte("preprocessed"), 0o644)
}

func quantRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	(&quantization.Module{}).Register(reg)
	require.NoError(t, reg.Validate(context.Background()))
	return reg
}

func newTestRunner(t *testing.T, q *fakeQuantizer, version string) *Runner {
	t.Helper()
	runner, err := NewRunner(Config{
		Registry:       quantRegistry(t),
		Quantizer:      q,
		RuntimeVersion: semver.MustParse(version),
	})
	require.NoError(t, err)
	return runner
}

func noCalibReader(string, int) (quantization.CalibrationReader, error) {
	return nil, errors.New("not implemented")
}

func staticSpec(extra searchspace.Point) RunSpec {
	point := searchspace.Point{
		"dataloader_func":  quantization.DataloaderVal(noCalibReader),
		"quant_preprocess": cty.False,
	}
	for k, v := range extra {
		point[k] = v
	}
	return RunSpec{
		Kind:       quantization.KindStatic,
		Point:      point,
		InputPath:  "/models/in.onnx",
		OutputPath: "/models/out.onnx",
	}
}

func TestNewRunner(t *testing.T) {
	reg := quantRegistry(t)
	q := &fakeQuantizer{}
	version := semver.MustParse("1.17.0")

	t.Run("missing collaborators fail", func(t *testing.T) {
		_, err := NewRunner(Config{Quantizer: q, RuntimeVersion: version})
		assert.Error(t, err)
		_, err = NewRunner(Config{Registry: reg, RuntimeVersion: version})
		assert.Error(t, err)
		_, err = NewRunner(Config{Registry: reg, Quantizer: q})
		assert.Error(t, err)
	})

	t.Run("preprocessor without cache fails", func(t *testing.T) {
		_, err := NewRunner(Config{
			Registry:       reg,
			Quantizer:      q,
			RuntimeVersion: version,
			Preprocessor:   &fakePreprocessor{},
		})
		assert.Error(t, err)
	})
}

func TestRunDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("dynamic pass dispatches the dynamic call", func(t *testing.T) {
		q := &fakeQuantizer{}
		runner := newTestRunner(t, q, "1.17.0")

		res, err := runner.Run(ctx, RunSpec{
			Kind:       quantization.KindDynamic,
			Point:      searchspace.Point{"quant_preprocess": cty.False},
			InputPath:  "/models/in.onnx",
			OutputPath: "/models/out.onnx",
		})
		require.NoError(t, err)
		require.True(t, res.Accepted)
		assert.Equal(t, StateDone, res.State)
		assert.Equal(t, []registry.Mode{registry.ModeDynamic}, q.calls)
		assert.Equal(t, "/models/out.onnx", res.OutputPath)
	})

	t.Run("static pass dispatches the static call", func(t *testing.T) {
		q := &fakeQuantizer{}
		runner := newTestRunner(t, q, "1.17.0")

		res, err := runner.Run(ctx, staticSpec(nil))
		require.NoError(t, err)
		require.True(t, res.Accepted)
		assert.Equal(t, []registry.Mode{registry.ModeStatic}, q.calls)

		// Steering keys never reach the quantizer.
		_, ok := q.lastReq.Config["quant_mode"]
		assert.False(t, ok)
		_, ok = q.lastReq.Config["dataloader_func"]
		assert.False(t, ok)
		_, ok = q.lastReq.Config["save_as_external_data"]
		assert.False(t, ok)
		assert.False(t, q.lastReq.ExternalData)
	})

	t.Run("external data flag carries into the request", func(t *testing.T) {
		q := &fakeQuantizer{}
		runner := newTestRunner(t, q, "1.17.0")

		_, err := runner.Run(ctx, staticSpec(searchspace.Point{
			"save_as_external_data": cty.True,
		}))
		require.NoError(t, err)
		assert.True(t, q.lastReq.ExternalData)
	})

	t.Run("unknown kind is an error", func(t *testing.T) {
		runner := newTestRunner(t, &fakeQuantizer{}, "1.17.0")
		_, err := runner.Run(ctx, RunSpec{Kind: "nonexistent"})
		assert.Error(t, err)
	})
}

func TestRunNegativeOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid point completes unaccepted", func(t *testing.T) {
		q := &fakeQuantizer{}
		runner := newTestRunner(t, q, "1.17.0")

		// QOperator with the default QInt8 weights resolves the
		// activation_type default to the invalid outcome.
		res, err := runner.Run(ctx, staticSpec(searchspace.Point{
			"quant_format": cty.StringVal("QOperator"),
		}))
		require.NoError(t, err)
		require.False(t, res.Accepted)
		assert.Equal(t, StateDone, res.State)
		assert.Contains(t, res.Reason, "activation_type")
		assert.Empty(t, q.calls)
	})

	t.Run("rejected point completes unaccepted", func(t *testing.T) {
		q := &fakeQuantizer{}
		runner := newTestRunner(t, q, "1.17.0")

		res, err := runner.Run(ctx, staticSpec(searchspace.Point{
			"EnableSubgraph": cty.True,
		}))
		require.NoError(t, err)
		require.False(t, res.Accepted)
		assert.Contains(t, res.Reason, "subgraph-static")
		assert.Empty(t, q.calls)
	})

	t.Run("advisory combination warns but runs", func(t *testing.T) {
		q := &fakeQuantizer{}
		runner := newTestRunner(t, q, "1.17.0")

		res, err := runner.Run(ctx, staticSpec(searchspace.Point{
			"quant_format":    cty.StringVal("QOperator"),
			"activation_type": cty.StringVal("QInt8"),
		}))
		require.NoError(t, err)
		require.True(t, res.Accepted)
		require.Len(t, q.calls, 1)

		found := false
		for _, w := range res.Warnings {
			if w == "S8S8 with QOperator will be slow on x86-64 CPUs and should be avoided in general, try QDQ instead" {
				found = true
			}
		}
		assert.True(t, found, "expected the S8S8 advisory warning, got %v", res.Warnings)
	})
}

func TestRunVersionGates(t *testing.T) {
	ctx := context.Background()

	t.Run("prepare_qnn_config needs 1.17.0", func(t *testing.T) {
		runner := newTestRunner(t, &fakeQuantizer{}, "1.16.0")

		_, err := runner.Run(ctx, staticSpec(searchspace.Point{
			"prepare_qnn_config": cty.True,
		}))
		var unsupported *UnsupportedFeatureVersionError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, "prepare_qnn_config", unsupported.Feature)
	})

	t.Run("prepare_qnn_config passes on 1.17.0", func(t *testing.T) {
		q := &fakeQuantizer{}
		runner := newTestRunner(t, q, "1.17.0")

		_, err := runner.Run(ctx, staticSpec(searchspace.Point{
			"prepare_qnn_config": cty.True,
		}))
		require.NoError(t, err)
		require.Len(t, q.calls, 1)
	})

	t.Run("matmul4 needs 1.16.2", func(t *testing.T) {
		spec := RunSpec{
			Kind:       quantization.KindMatMul4,
			Point:      searchspace.Point{},
			InputPath:  "/models/in.onnx",
			OutputPath: "/models/out.onnx",
		}

		runner := newTestRunner(t, &fakeQuantizer{}, "1.16.0")
		_, err := runner.Run(ctx, spec)
		var unsupported *UnsupportedFeatureVersionError
		require.ErrorAs(t, err, &unsupported)

		q := &fakeQuantizer{}
		runner = newTestRunner(t, q, "1.16.2")
		res, err := runner.Run(ctx, spec)
		require.NoError(t, err)
		require.True(t, res.Accepted)
		assert.Equal(t, []registry.Mode{registry.ModeMatMul4}, q.calls)
	})

	t.Run("optimize_model is pinned off below 1.16.0", func(t *testing.T) {
		q := &fakeQuantizer{}
		runner := newTestRunner(t, q, "1.15.1")

		_, err := runner.Run(ctx, staticSpec(nil))
		require.NoError(t, err)
		val, ok := q.lastReq.Config[ParamOptimizeModel]
		require.True(t, ok)
		assert.True(t, val.RawEquals(cty.False))
	})

	t.Run("optimize_model is untouched from 1.16.0 on", func(t *testing.T) {
		q := &fakeQuantizer{}
		runner := newTestRunner(t, q, "1.16.0")

		_, err := runner.Run(ctx, staticSpec(nil))
		require.NoError(t, err)
		_, ok := q.lastReq.Config[ParamOptimizeModel]
		assert.False(t, ok)
	})
}

func TestRunCalibrationSource(t *testing.T) {
	ctx := context.Background()

	t.Run("static without a source fails", func(t *testing.T) {
		runner := newTestRunner(t, &fakeQuantizer{}, "1.17.0")
		_, err := runner.Run(ctx, RunSpec{
			Kind:  quantization.KindStatic,
			Point: searchspace.Point{"quant_preprocess": cty.False},
		})
		var confErr *ConfigurationError
		require.ErrorAs(t, err, &confErr)
		assert.Contains(t, confErr.Reason, "requires")
	})

	t.Run("static with both sources fails", func(t *testing.T) {
		runner := newTestRunner(t, &fakeQuantizer{}, "1.17.0")
		_, err := runner.Run(ctx, staticSpec(searchspace.Point{
			"data_config": cty.ObjectVal(map[string]cty.Value{"name": cty.StringVal("calib")}),
		}))
		var confErr *ConfigurationError
		require.ErrorAs(t, err, &confErr)
		assert.Contains(t, confErr.Reason, "not both")
	})

	t.Run("data config alone is accepted", func(t *testing.T) {
		q := &fakeQuantizer{}
		runner := newTestRunner(t, q, "1.17.0")
		res, err := runner.Run(ctx, RunSpec{
			Kind: quantization.KindStatic,
			Point: searchspace.Point{
				"quant_preprocess": cty.False,
				"data_config":      cty.ObjectVal(map[string]cty.Value{"name": cty.StringVal("calib")}),
			},
			InputPath:  "/models/in.onnx",
			OutputPath: "/models/out.onnx",
		})
		require.NoError(t, err)
		assert.True(t, res.Accepted)
	})

	t.Run("dynamic needs no source", func(t *testing.T) {
		q := &fakeQuantizer{}
		runner := newTestRunner(t, q, "1.17.0")
		res, err := runner.Run(ctx, RunSpec{
			Kind:  quantization.KindDynamic,
			Point: searchspace.Point{"quant_preprocess": cty.False},
		})
		require.NoError(t, err)
		assert.True(t, res.Accepted)
	})
}

func TestRunPreprocessing(t *testing.T) {
	ctx := context.Background()

	newCachingRunner := func(t *testing.T, q *fakeQuantizer, p *fakePreprocessor) *Runner {
		t.Helper()
		runner, err := NewRunner(Config{
			Registry:       quantRegistry(t),
			Quantizer:      q,
			RuntimeVersion: semver.MustParse("1.17.0"),
			Preprocessor:   p,
			Cache:          cache.NewDirCache(t.TempDir(), "model.onnx"),
		})
		require.NoError(t, err)
		return runner
	}

	inputFile := func(t *testing.T) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "in.onnx")
		require.NoError(t, os.WriteFile(path, []byte("model"), 0o644))
		return path
	}

	t.Run("preprocesses once then hits the cache", func(t *testing.T) {
		q := &fakeQuantizer{}
		p := &fakePreprocessor{}
		runner := newCachingRunner(t, q, p)
		input := inputFile(t)

		spec := staticSpec(searchspace.Point{"quant_preprocess": cty.True})
		spec.InputPath = input

		_, err := runner.Run(ctx, spec)
		require.NoError(t, err)
		assert.Equal(t, 1, p.calls)
		assert.NotEqual(t, input, q.lastReq.InputPath)
		first := q.lastReq.InputPath

		_, err = runner.Run(ctx, spec)
		require.NoError(t, err)
		assert.Equal(t, 1, p.calls)
		assert.Equal(t, first, q.lastReq.InputPath)
	})

	t.Run("preprocessing failure falls back to the original model", func(t *testing.T) {
		q := &fakeQuantizer{}
		p := &fakePreprocessor{err: errors.New("shape inference failed")}
		runner := newCachingRunner(t, q, p)
		input := inputFile(t)

		spec := staticSpec(searchspace.Point{"quant_preprocess": cty.True})
		spec.InputPath = input

		res, err := runner.Run(ctx, spec)
		require.NoError(t, err)
		assert.True(t, res.Accepted)
		assert.Equal(t, input, q.lastReq.InputPath)
	})

	t.Run("disabled preprocessing skips the cache entirely", func(t *testing.T) {
		q := &fakeQuantizer{}
		p := &fakePreprocessor{}
		runner := newCachingRunner(t, q, p)
		input := inputFile(t)

		spec := staticSpec(nil)
		spec.InputPath = input

		_, err := runner.Run(ctx, spec)
		require.NoError(t, err)
		assert.Equal(t, 0, p.calls)
		assert.Equal(t, input, q.lastReq.InputPath)
	})
}

func TestRunQuantizerFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("quantizer failures wrap as transformation failed", func(t *testing.T) {
		q := &fakeQuantizer{err: fmt.Errorf("tensor out of range: %w", ErrQuantizer)}
		runner := newTestRunner(t, q, "1.17.0")

		_, err := runner.Run(ctx, staticSpec(nil))
		var failed *TransformationFailedError
		require.ErrorAs(t, err, &failed)
		assert.Equal(t, registry.ModeStatic, failed.Mode)
		assert.ErrorIs(t, err, ErrQuantizer)
	})

	t.Run("other errors propagate unmodified", func(t *testing.T) {
		boom := errors.New("nil pointer somewhere")
		q := &fakeQuantizer{err: boom}
		runner := newTestRunner(t, q, "1.17.0")

		_, err := runner.Run(ctx, staticSpec(nil))
		require.ErrorIs(t, err, boom)
		var failed *TransformationFailedError
		assert.False(t, errors.As(err, &failed))
	})
}
