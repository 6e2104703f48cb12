package quantization

import (
	"reflect"

	"github.com/zclconf/go-cty/cty"
)

// CalibrationReader is the iterator shape the calibration boundary
// produces: one batch of named sample tensors per call, in whatever
// representation the quantizer implementation consumes.
type CalibrationReader interface {
	Next() (map[string]any, bool)
}

// DataloaderFunc is a caller-supplied calibration dataloader factory. It
// receives the resolved data directory and batch size and returns the
// sample iterator.
type DataloaderFunc func(dataDir string, batchSize int) (CalibrationReader, error)

// dataloaderType carries DataloaderFunc values through the parameter
// table. Capsules compare by identity, which is the right equality for
// caller-supplied functions. The dataloader_func parameter alternatively
// accepts a plain string naming a function inside user_script; resolving
// such names is the quantizer implementation's concern.
var dataloaderType = cty.Capsule("dataloader_func", reflect.TypeOf(DataloaderFunc(nil)))

// DataloaderVal wraps a dataloader factory as a parameter value.
func DataloaderVal(fn DataloaderFunc) cty.Value {
	return cty.CapsuleVal(dataloaderType, &fn)
}

// DataloaderFromVal unwraps a parameter value produced by DataloaderVal.
func DataloaderFromVal(v cty.Value) (DataloaderFunc, bool) {
	if v == cty.NilVal || v.IsNull() || !v.IsKnown() || !v.Type().Equals(dataloaderType) {
		return nil, false
	}
	fn, ok := v.EncapsulatedValue().(*DataloaderFunc)
	if !ok {
		return nil, false
	}
	return *fn, true
}
