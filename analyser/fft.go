package analyser

import "gonum.org/v1/gonum/dsp/fourier"

// spectrum is a fixed-size real FFT with a reusable coefficient buffer.
// Not safe for concurrent use.
type spectrum struct {
	fft   *fourier.FFT
	coeff []complex128
}

func newSpectrum(size int) *spectrum {
	return &spectrum{
		fft:   fourier.NewFFT(size),
		coeff: make([]complex128, size/2+1),
	}
}

// transform returns the unnormalized coefficients of x (len == size),
// bins 0..size/2. The slice is reused by the next call.
func (s *spectrum) transform(x []float64) []complex128 {
	s.coeff = s.fft.Coefficients(s.coeff, x)
	return s.coeff
}
