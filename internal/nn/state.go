package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// StateDict maps parameter and buffer names to raw tensors.
type StateDict = map[string]*tensor.RawTensor

// mergeState copies every entry of src into dst under prefix+".".
func mergeState(dst StateDict, prefix string, src StateDict) {
	for name, raw := range src {
		dst[prefix+"."+name] = raw
	}
}

// subState returns the entries of state under prefix+".", with the prefix
// stripped. Keys without the prefix are ignored.
func subState(state StateDict, prefix string) StateDict {
	p := prefix + "."
	sub := make(StateDict)
	for key, raw := range state {
		if name, ok := strings.CutPrefix(key, p); ok && name != "" {
			sub[name] = raw
		}
	}
	return sub
}

// loadTensor copies a float32 entry of state into dst after validating
// presence, shape and dtype.
func loadTensor[B tensor.Backend](state StateDict, name string, dst *tensor.Tensor[float32, B]) error {
	raw, ok := state[name]
	if !ok {
		return fmt.Errorf("missing %s in state dict", name)
	}

	if !raw.Shape().Equal(dst.Shape()) {
		return fmt.Errorf("%s shape mismatch: expected %v, got %v", name, dst.Shape(), raw.Shape())
	}

	if raw.DType() != tensor.Float32 {
		return fmt.Errorf("%s dtype mismatch: expected float32, got %v", name, raw.DType())
	}

	copy(dst.Data(), raw.AsFloat32())
	return nil
}

// loadParameter is loadTensor for a parameter.
func loadParameter[B tensor.Backend](state StateDict, name string, p *nn.Parameter[B]) error {
	return loadTensor(state, name, p.Tensor())
}
