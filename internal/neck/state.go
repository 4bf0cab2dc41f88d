package neck

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/born/tensor"
)

func prefixed(prefix string, state map[string]*tensor.RawTensor) map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor, len(state))
	for name, raw := range state {
		out[prefix+"."+name] = raw
	}
	return out
}

func unprefixed(prefix string, state map[string]*tensor.RawTensor) map[string]*tensor.RawTensor {
	p := prefix + "."
	out := make(map[string]*tensor.RawTensor, len(state))
	for key, raw := range state {
		if name, ok := strings.CutPrefix(key, p); ok {
			out[name] = raw
		}
	}
	return out
}

// checkState validates got against the decoder's own state dict want before
// anything is copied: every key must be present with the same shape and
// dtype. nn.Sequential skips sub-modules with no matching keys and loads
// blocks one at a time, so without this a bad checkpoint could load silently
// or leave earlier blocks overwritten.
func checkState(want, got map[string]*tensor.RawTensor) error {
	var missing []string
	for key := range want {
		if _, ok := got[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing %d state dict entries: %s", len(missing), strings.Join(missing, ", "))
	}

	keys := make([]string, 0, len(want))
	for key := range want {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		w, g := want[key], got[key]
		if !w.Shape().Equal(g.Shape()) {
			return fmt.Errorf("%s shape mismatch: expected %v, got %v", key, w.Shape(), g.Shape())
		}
		if w.DType() != g.DType() {
			return fmt.Errorf("%s dtype mismatch: expected %v, got %v", key, w.DType(), g.DType())
		}
	}
	return nil
}
