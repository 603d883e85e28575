package cmn

import "fmt"

// FormatDuration renders seconds in the unit the spec's Progressing State
// requires: "s" under a minute, "m s" under an hour, "h m" under a day, and
// "d h" beyond that. Implemented once here so state.ProgressingState does
// not inline duration math.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		m, s := seconds/60, seconds%60
		return fmt.Sprintf("%dm%ds", m, s)
	case seconds < 86400:
		h, m := seconds/3600, (seconds%3600)/60
		return fmt.Sprintf("%dh%dm", h, m)
	default:
		d, h := seconds/86400, (seconds%86400)/3600
		return fmt.Sprintf("%dd%dh", d, h)
	}
}

// Progress renders "cur/max" when max is known (>= 0) or just "cur"
// otherwise, per spec.md §4.4's getProgress() contract.
func Progress(cur, max int64) string {
	if max < 0 {
		return fmt.Sprintf("%d", cur)
	}
	return fmt.Sprintf("%d/%d", cur, max)
}

// PercentAndETA computes completion percentage and estimated remaining
// seconds by linear extrapolation from a start timestamp, or (0, -1, false)
// when max is unknown or no progress has been made yet.
func PercentAndETA(cur, max int64, elapsedSeconds int64) (percent float64, etaSeconds int64, known bool) {
	if max <= 0 || cur <= 0 || elapsedSeconds <= 0 {
		return 0, -1, false
	}
	percent = float64(cur) / float64(max) * 100
	rate := float64(cur) / float64(elapsedSeconds)
	if rate <= 0 {
		return percent, -1, false
	}
	remaining := float64(max-cur) / rate
	return percent, int64(remaining), true
}
