package windowing

// bartlett is the triangular window peaking at the centre.
func bartlett(coeffs []float64, denominator float64) {
	half := denominator / 2
	for i := range coeffs {
		v := 1.0 - abs((float64(i)-half)/half)
		if v < 0 {
			v = 0
		}
		coeffs[i] = v
	}
}

// welch is the parabolic window.
func welch(coeffs []float64, denominator float64) {
	half := denominator / 2
	for i := range coeffs {
		arg := (float64(i) - half) / half
		coeffs[i] = 1.0 - arg*arg
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
