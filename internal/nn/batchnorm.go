package nn

import (
	"fmt"

	"github.com/born-ml/elannet/internal/tensor"
)

// BatchNormEps is the variance epsilon used by BatchNorm2D (PyTorch default).
const BatchNormEps = 1e-5

// BatchNorm2D normalizes each channel of an [N, C, H, W] tensor with its
// running statistics:
//
//	y = (x - running_mean) / sqrt(running_var + eps) * weight + bias
//
// Only inference mode is implemented; running statistics are never updated.
//
// State-dict entries: weight, bias, running_mean, running_var,
// num_batches_tracked (a scalar kept for checkpoint compatibility).
type BatchNorm2D[B tensor.Backend] struct {
	features int
	eps      float64

	weight            *Parameter[B]
	bias              *Parameter[B]
	runningMean       *Parameter[B]
	runningVar        *Parameter[B]
	numBatchesTracked *Parameter[B]

	backend B
}

// NewBatchNorm2D creates a batch-norm layer over the given number of
// channels with weight=1, bias=0, running_mean=0, running_var=1.
func NewBatchNorm2D[B tensor.Backend](path Path, features int, backend B) *BatchNorm2D[B] {
	if features <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid features %d", features))
	}
	shape := tensor.Shape{features}

	return &BatchNorm2D[B]{
		features:          features,
		eps:               BatchNormEps,
		weight:            NewParameter(path.Key("weight"), Ones(shape, backend)),
		bias:              NewParameter(path.Key("bias"), Zeros(shape, backend)),
		runningMean:       NewBuffer(path.Key("running_mean"), Zeros(shape, backend)),
		runningVar:        NewBuffer(path.Key("running_var"), Ones(shape, backend)),
		numBatchesTracked: NewBuffer(path.Key("num_batches_tracked"), Zeros(tensor.Shape{}, backend)),
		backend:           backend,
	}
}

// Forward normalizes input [N, C, H, W].
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != bn.features {
		panic(fmt.Sprintf("batchnorm2d: expected [N,%d,H,W], got %v", bn.features, shape))
	}

	out := bn.backend.BatchNorm2D(
		input.Raw(),
		bn.runningMean.Tensor().Raw(),
		bn.runningVar.Tensor().Raw(),
		bn.weight.Tensor().Raw(),
		bn.bias.Tensor().Raw(),
		bn.eps,
	)
	return tensor.New[float32, B](out, bn.backend)
}

// Parameters returns weight, bias and the three buffers.
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.weight, bn.bias, bn.runningMean, bn.runningVar, bn.numBatchesTracked}
}

// String returns a string representation of the layer.
func (bn *BatchNorm2D[B]) String() string {
	return fmt.Sprintf("BatchNorm2d(%d, eps=%g)", bn.features, bn.eps)
}
