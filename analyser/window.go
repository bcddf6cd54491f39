package analyser

import "gonum.org/v1/gonum/dsp/window"

// blackman returns the Blackman window coefficients for n samples.
func blackman(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return window.Blackman(w)
}
