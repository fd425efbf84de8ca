package cpu

import (
	"fmt"

	"github.com/born-ml/elannet/internal/tensor"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// MatMul performs matrix multiplication (M, K) @ (K, N) -> (M, N) with
// gonum's SGEMM.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}
	requireFloat32("matmul", a, b)

	result := tensor.MustRaw(tensor.Shape{m, n}, tensor.Float32, cpu.device)

	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		blas32.General{Rows: m, Cols: k, Stride: k, Data: a.AsFloat32()},
		blas32.General{Rows: k, Cols: n, Stride: n, Data: b.AsFloat32()},
		0,
		blas32.General{Rows: m, Cols: n, Stride: n, Data: result.AsFloat32()},
	)

	return result
}
