package scoring

// Compute derives clicks-per-second and accuracy from raw counters.
// duration must be positive; Validate guarantees it.
func Compute(correctClicks, totalClicks int, duration float64) (cps, accuracy float64) {
	cps = float64(correctClicks) / duration
	if totalClicks > 0 {
		accuracy = float64(correctClicks) / float64(totalClicks) * 100
	}
	return cps, accuracy
}
