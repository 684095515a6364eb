package pipeline

import "sync/atomic"

// ErrorStats is the run-scoped aggregation of non-fatal errors, returned to
// the caller inside the report instead of being logged once and suppressed.
type ErrorStats struct {
	FileReads   int `json:"fileReads"`
	Extractions int `json:"extractions"`
	Embeddings  int `json:"embeddings"`
	Store       int `json:"store"`
}

// Total returns the sum of all error counters.
func (e ErrorStats) Total() int {
	return e.FileReads + e.Extractions + e.Embeddings + e.Store
}

// errorCounter accumulates error counts from concurrent workers.
type errorCounter struct {
	fileReads   atomic.Int64
	extractions atomic.Int64
	embeddings  atomic.Int64
	store       atomic.Int64
}

func (c *errorCounter) snapshot() ErrorStats {
	return ErrorStats{
		FileReads:   int(c.fileReads.Load()),
		Extractions: int(c.extractions.Load()),
		Embeddings:  int(c.embeddings.Load()),
		Store:       int(c.store.Load()),
	}
}
