package hash

import "github.com/klauspost/cpuid/v2"

var hashVectorizedParallelism = 1

func init() {
	switch {
	case cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ):
		hashVectorizedParallelism = 16
	case cpuid.CPU.Supports(cpuid.AVX2):
		hashVectorizedParallelism = 8
	case cpuid.CPU.Supports(cpuid.SSE2), cpuid.CPU.Supports(cpuid.ASIMD):
		hashVectorizedParallelism = 4
	}
}

// HashVectorizedParallelism reports the recommended number of hashes to compute
// per call of HashVectorized: the SIMD register width in uint32 lanes of this
// CPU. It is a batching hint only; HashVectorized returns the same results for
// any slice length. Can't return 0.
func HashVectorizedParallelism() int {
	return hashVectorizedParallelism
}

// HashVectorized computes out[i] = Hash(n[i], s, max) for every lane.
func HashVectorized(out []uint32, n []uint32, s uint32, max uint32) {
	n = n[:len(out)]
	for i := range out {
		out[i] = Hash(n[i], s, max)
	}
}

// HashVectorizedDistinct computes out[i] = Hash(n[i], s[i], max[i]) for every lane.
func HashVectorizedDistinct(out []uint32, n []uint32, s []uint32, max []uint32) {
	n, s, max = n[:len(out)], s[:len(out)], max[:len(out)]
	for i := range out {
		out[i] = Hash(n[i], s[i], max[i])
	}
}
