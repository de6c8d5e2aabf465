// Package capacity computes Storage Element free-space thresholds and
// statuses from capacity_total and mode (§4.7).
package capacity

import "github.com/BigKAA/artStore-sub005/pkg/model"

const gib = int64(1) << 30

// pct returns percent of total as an int64 byte count, truncated toward zero.
func pct(total int64, percent float64) int64 {
	return int64(float64(total) * percent)
}

func max(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// Derive computes the warning/critical/full free-byte floors for mode
// given the SE's total capacity (§4.7). ro and ar modes report capacity
// but their thresholds are unused — Status always returns CapacityOK for
// those modes via StatusFor.
func Derive(mode model.Mode, totalBytes int64) model.Thresholds {
	switch mode {
	case model.ModeRW:
		return model.Thresholds{
			WarningFree:  max(pct(totalBytes, 0.15), 150*gib),
			CriticalFree: max(pct(totalBytes, 0.08), 80*gib),
			FullFree:     max(pct(totalBytes, 0.02), 20*gib),
		}
	case model.ModeEdit:
		return model.Thresholds{
			WarningFree:  max(pct(totalBytes, 0.10), 100*gib),
			CriticalFree: max(pct(totalBytes, 0.05), 50*gib),
			FullFree:     max(pct(totalBytes, 0.01), 10*gib),
		}
	default: // ro, ar: reported only
		return model.Thresholds{}
	}
}

// StatusFor classifies freeBytes for a Storage Element in the given mode.
// ro and ar Storage Elements are always reported ok (§4.7).
func StatusFor(mode model.Mode, thresholds model.Thresholds, freeBytes int64) model.CapacityStatus {
	switch mode {
	case model.ModeRO, model.ModeAR:
		return model.CapacityOK
	default:
		return thresholds.Status(freeBytes)
	}
}

// Percent computes the fixed-point, two-decimal used-capacity percentage
// for the registry hash (§6.5).
func Percent(usedBytes, totalBytes int64) float64 {
	if totalBytes <= 0 {
		return 0
	}
	raw := float64(usedBytes) / float64(totalBytes) * 100
	return float64(int64(raw*100)) / 100
}
