package common

import "runtime"

// RuntimeStats is a small snapshot of process memory and goroutine counts.
type RuntimeStats struct {
	AllocBytes     uint64 `json:"alloc_bytes"`
	SysBytes       uint64 `json:"sys_bytes"`
	HeapInuseBytes uint64 `json:"heap_inuse_bytes"`
	NumGC          uint32 `json:"num_gc"`
	Goroutines     int    `json:"goroutines"`
}

// ReadRuntimeStats samples the Go runtime.
func ReadRuntimeStats() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return RuntimeStats{
		AllocBytes:     m.Alloc,
		SysBytes:       m.Sys,
		HeapInuseBytes: m.HeapInuse,
		NumGC:          m.NumGC,
		Goroutines:     runtime.NumGoroutine(),
	}
}
