package cpu

import (
	"github.com/klauspost/cpuid/v2"
)

// Info describes the host CPU as seen by the backend.
type Info struct {
	Brand         string
	PhysicalCores int
	LogicalCores  int
	Features      []string
	Workers       int
}

// simdFeatures lists the instruction sets worth reporting for float32 kernels.
var simdFeatures = []struct {
	id   cpuid.FeatureID
	name string
}{
	{cpuid.SSE4, "SSE4.1"},
	{cpuid.AVX, "AVX"},
	{cpuid.AVX2, "AVX2"},
	{cpuid.FMA3, "FMA3"},
	{cpuid.AVX512F, "AVX512F"},
	{cpuid.ASIMD, "NEON"},
}

// Info reports the CPU brand, core counts, SIMD support and the worker limit.
func (cpu *CPUBackend) Info() Info {
	info := Info{
		Brand:         cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		Workers:       cpu.Workers(),
	}
	for _, f := range simdFeatures {
		if cpuid.CPU.Supports(f.id) {
			info.Features = append(info.Features, f.name)
		}
	}
	return info
}
