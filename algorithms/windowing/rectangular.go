package windowing

// rectangular is the "square" window: no tapering at all.
func rectangular(coeffs []float64, _ float64) {
	for i := range coeffs {
		coeffs[i] = 1.0
	}
}
