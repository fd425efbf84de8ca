package nn

import (
	"errors"
	"fmt"
	"sort"

	"github.com/born-ml/elannet/internal/tensor"
)

// ErrMissingKey is returned by LoadStateDict when a module parameter has
// no entry in the state dict.
var ErrMissingKey = errors.New("missing key in state dict")

// StateDict returns a map of parameter names to raw tensors (views, not
// copies), including buffers.
func StateDict[B tensor.Backend](m Module[B]) map[string]*tensor.RawTensor {
	params := m.Parameters()
	stateDict := make(map[string]*tensor.RawTensor, len(params))
	for _, p := range params {
		stateDict[p.Name()] = p.Tensor().Raw()
	}
	return stateDict
}

// StateDictKeys returns the sorted state-dict keys of m.
func StateDictKeys[B tensor.Backend](m Module[B]) []string {
	params := m.Parameters()
	keys := make([]string, 0, len(params))
	for _, p := range params {
		keys = append(keys, p.Name())
	}
	sort.Strings(keys)
	return keys
}

// ParameterMap indexes the parameters of m by name.
func ParameterMap[B tensor.Backend](m Module[B]) map[string]*Parameter[B] {
	params := m.Parameters()
	out := make(map[string]*Parameter[B], len(params))
	for _, p := range params {
		out[p.Name()] = p
	}
	return out
}

// LoadStateDict copies every entry of stateDict into m.
//
// Loading is strict: each parameter of m must be present with a matching
// shape, and unknown keys are rejected. Use the weights package for the
// tolerant filter-then-apply load of pretrained checkpoints.
func LoadStateDict[B tensor.Backend](m Module[B], stateDict map[string]*tensor.RawTensor) error {
	params := ParameterMap(m)
	for key := range stateDict {
		if _, ok := params[key]; !ok {
			return fmt.Errorf("unexpected key %q in state dict", key)
		}
	}
	for name, p := range params {
		raw, ok := stateDict[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingKey, name)
		}
		if err := p.Load(raw); err != nil {
			return err
		}
	}
	return nil
}

// NumParameters counts trainable scalars, excluding buffers.
func NumParameters[B tensor.Backend](m Module[B]) int {
	total := 0
	for _, p := range m.Parameters() {
		if !p.IsBuffer() {
			total += p.Shape().NumElements()
		}
	}
	return total
}
