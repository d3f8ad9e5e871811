package analysis

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/san-kum/reservoir/internal/dynamo"
)

// PowerSpectrum returns the one-sided power spectrum of a signal sampled
// every dt, with the mean removed. freqs[k] is k/(n·dt).
func PowerSpectrum(data []float64, dt float64) (freqs, power []float64, err error) {
	n := len(data)
	if n < 2 || !(dt > 0) {
		return nil, nil, fmt.Errorf("%w: need at least 2 samples and dt > 0", dynamo.ErrPrecondition)
	}

	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(n)
	centred := make([]float64, n)
	for i, v := range data {
		centred[i] = v - mean
	}

	coeff := fourier.NewFFT(n).Coefficients(nil, centred)
	freqs = make([]float64, len(coeff))
	power = make([]float64, len(coeff))
	for k, c := range coeff {
		freqs[k] = float64(k) / (float64(n) * dt)
		a := cmplx.Abs(c)
		power[k] = a * a / float64(n)
	}
	return freqs, power, nil
}

// DominantFrequency is the frequency of the largest non-DC spectral peak.
func DominantFrequency(data []float64, dt float64) (float64, error) {
	freqs, power, err := PowerSpectrum(data, dt)
	if err != nil {
		return 0, err
	}
	best := 1
	for k := 2; k < len(power); k++ {
		if power[k] > power[best] {
			best = k
		}
	}
	return freqs[best], nil
}
