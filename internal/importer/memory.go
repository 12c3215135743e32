package importer

import "runtime"

// MemoryStatus is one sample of the process's memory footprint, in MB.
type MemoryStatus struct {
	UsedMB  uint64 `json:"used"`
	TotalMB uint64 `json:"total"`
	LimitMB uint64 `json:"limit"`
}

// MemorySampler reports current usage. The orchestrator fills in
// LimitMB from the run's options; samplers may leave it zero.
type MemorySampler func() MemoryStatus

// RuntimeMemorySampler samples the Go heap. Used is the live heap,
// Total is what the runtime holds from the OS.
func RuntimeMemorySampler() MemoryStatus {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	const mb = 1 << 20
	return MemoryStatus{
		UsedMB:  ms.HeapAlloc / mb,
		TotalMB: ms.Sys / mb,
	}
}
