package agent

import "time"

// Limits are the per-run ceilings.
type Limits struct {
	MaxFiles          int
	MaxFileAttempts   int
	MaxReadFailures   int
	ChunkLines        int
	MaxLinesPerFile   int
	TargetWindow      int
	Attempts          int
	GenerationTimeout time.Duration
	// Priority paths are read right after files the question names.
	Priority []string
}

// DefaultLimits returns the ceilings used when configuration leaves a value unset.
func DefaultLimits() Limits {
	return Limits{
		MaxFiles:          10,
		MaxFileAttempts:   3,
		MaxReadFailures:   6,
		ChunkLines:        200,
		MaxLinesPerFile:   600,
		TargetWindow:      5,
		Attempts:          2,
		GenerationTimeout: 60 * time.Second,
	}
}

// normalized replaces non-positive values with defaults.
func (limits Limits) normalized() Limits {
	defaults := DefaultLimits()
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = defaults.MaxFiles
	}
	if limits.MaxFileAttempts <= 0 {
		limits.MaxFileAttempts = defaults.MaxFileAttempts
	}
	if limits.MaxReadFailures <= 0 {
		limits.MaxReadFailures = defaults.MaxReadFailures
	}
	if limits.ChunkLines <= 0 {
		limits.ChunkLines = defaults.ChunkLines
	}
	if limits.MaxLinesPerFile <= 0 {
		limits.MaxLinesPerFile = defaults.MaxLinesPerFile
	}
	if limits.TargetWindow < 0 {
		limits.TargetWindow = 0
	}
	if limits.Attempts <= 0 {
		limits.Attempts = defaults.Attempts
	}
	if limits.GenerationTimeout <= 0 {
		limits.GenerationTimeout = defaults.GenerationTimeout
	}
	return limits
}
