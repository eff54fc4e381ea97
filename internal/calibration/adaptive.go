// Package calibration measures how many evaluation workers suit this machine
// and caches the answer in a profile.
// This file generates the candidate worker counts.
package calibration

import "runtime"

// WorkerCandidates returns the worker counts a calibration run tries on this
// machine.
func WorkerCandidates() []int {
	return workerCandidates(runtime.NumCPU())
}

// workerCandidates returns the powers of two below numCPU followed by numCPU,
// and twice numCPU from eight cores up.
func workerCandidates(numCPU int) []int {
	if numCPU <= 1 {
		return []int{1}
	}
	var candidates []int
	for w := 1; w < numCPU; w *= 2 {
		candidates = append(candidates, w)
	}
	candidates = append(candidates, numCPU)
	if numCPU >= 8 {
		candidates = append(candidates, 2*numCPU)
	}
	return candidates
}
