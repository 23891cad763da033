package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/stat"
)

// Column extracts component idx from every state.
func Column[S ~[]float64](states []S, idx int) []float64 {
	out := make([]float64, 0, len(states))
	for _, s := range states {
		if idx < len(s) {
			out = append(out, s[idx])
		}
	}
	return out
}

// PowerSpectrum returns the magnitude of bins 0..n/2 of the DFT of the
// mean-removed signal.
func PowerSpectrum(signal []float64) []float64 {
	if len(signal) == 0 {
		return nil
	}
	mean := stat.Mean(signal, nil)
	centered := make([]float64, len(signal))
	for i, v := range signal {
		centered[i] = v - mean
	}

	coeffs := fft.FFTReal(centered)
	ps := make([]float64, len(coeffs)/2+1)
	for i := range ps {
		ps[i] = cmplx.Abs(coeffs[i])
	}
	return ps
}

// Frequencies returns the frequency in Hz of each PowerSpectrum bin for n
// samples spaced dt apart.
func Frequencies(n int, dt float64) []float64 {
	if n == 0 || dt <= 0 {
		return nil
	}
	out := make([]float64, n/2+1)
	for i := range out {
		out[i] = float64(i) / (float64(n) * dt)
	}
	return out
}

// DominantFrequency returns the non-DC frequency with the most power and
// that power. Signals shorter than 4 samples report zero.
func DominantFrequency(signal []float64, dt float64) (float64, float64) {
	if len(signal) < 4 || dt <= 0 {
		return 0, 0
	}
	ps := PowerSpectrum(signal)
	best := 1
	for i := 2; i < len(ps); i++ {
		if ps[i] > ps[best] {
			best = i
		}
	}
	return float64(best) / (float64(len(signal)) * dt), ps[best]
}
