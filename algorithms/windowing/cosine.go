package windowing

import "math"

// cosineSum fills coeffs with a0 - a1*cos(x) + a2*cos(2x) - a3*cos(3x) ...
func cosineSum(coeffs []float64, denominator float64, a ...float64) {
	for i := range coeffs {
		arg := 2 * math.Pi * float64(i) / denominator
		sign := 1.0
		v := 0.0
		for k, ak := range a {
			v += sign * ak * math.Cos(float64(k)*arg)
			sign = -sign
		}
		coeffs[i] = v
	}
}

func hann(coeffs []float64, denominator float64) {
	cosineSum(coeffs, denominator, 0.5, 0.5)
}

func hamming(coeffs []float64, denominator float64) {
	cosineSum(coeffs, denominator, 0.54, 0.46)
}

func blackman(coeffs []float64, denominator float64) {
	cosineSum(coeffs, denominator, 0.42, 0.5, 0.08)
}

func blackmanHarris(coeffs []float64, denominator float64) {
	cosineSum(coeffs, denominator, 0.35875, 0.48829, 0.14128, 0.01168)
}
