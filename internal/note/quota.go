package note

import (
	"encoding/json"
	"fmt"
)

// CapacityBytes is the fixed capacity ceiling: 4.5 MiB, a safety margin
// below the typical 5 MiB local-storage limit of the hosting browser.
const CapacityBytes int64 = 4.5 * 1024 * 1024

// CreateGatePercent is the usage percentage at which creation and import
// are refused. Advisory back-pressure: the underlying store may still fail
// a write independently.
const CreateGatePercent = 90.0

// Pressure buckets usedPercentage for the storage meter.
type Pressure string

const (
	PressureNormal   Pressure = "normal"
	PressureElevated Pressure = "elevated"
	PressureCritical Pressure = "critical"
)

// QuotaSnapshot is the derived usage view, recomputed after every mutation.
type QuotaSnapshot struct {
	NoteCount      int     `json:"note_count"`
	TotalBytes     int64   `json:"total_bytes"`
	UsedPercentage float64 `json:"used_percentage"`
}

// Snapshot computes the quota view for a collection. TotalBytes is the sum
// of each note's serialized size, matching what persistence will write.
func Snapshot(notes []Note) QuotaSnapshot {
	var total int64
	for i := range notes {
		data, err := json.Marshal(&notes[i])
		if err != nil {
			continue
		}
		total += int64(len(data))
	}

	pct := float64(total) / float64(CapacityBytes) * 100
	if pct > 100 {
		pct = 100
	}

	return QuotaSnapshot{
		NoteCount:      len(notes),
		TotalBytes:     total,
		UsedPercentage: pct,
	}
}

// AtCreateGate reports whether creation and import must be refused.
func (q QuotaSnapshot) AtCreateGate() bool {
	return q.UsedPercentage >= CreateGatePercent
}

// Pressure returns the meter bucket for the current usage.
func (q QuotaSnapshot) Pressure() Pressure {
	switch {
	case q.UsedPercentage > 80:
		return PressureCritical
	case q.UsedPercentage > 60:
		return PressureElevated
	default:
		return PressureNormal
	}
}

// FormatSize renders a byte count for the storage meter.
func FormatSize(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	}
}
