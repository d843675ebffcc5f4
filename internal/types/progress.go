package types

import "time"

// Progress is a per-attempt snapshot of a transfer. Values are advisory.
type Progress struct {
	BytesResumedFrom int64
	BytesTotal       int64 // 0 when unknown
	BytesTransferred int64 // cumulative, including BytesResumedFrom
	StartTime        time.Time
	Rate             float64 // bytes/s over the current attempt
	ETA              time.Duration
}

// Percent returns completion in [0,100], or -1 when the total is unknown.
func (p Progress) Percent() float64 {
	if p.BytesTotal <= 0 {
		return -1
	}
	pct := float64(p.BytesTransferred) / float64(p.BytesTotal) * 100
	if pct > 100 {
		return 100
	}
	return pct
}
