// Package level provides signal level measurements and the amplitude
// threshold test used to decide whether a buffer of samples is silent.
package level

import "math"

// Energy returns the mean signal energy of a multichannel buffer.
// The squared samples of every channel are summed and divided by the
// per-channel length, so adding channels raises the measured level.
// An empty buffer has zero energy.
func Energy(buf [][]float32) float64 {
	if len(buf) == 0 || len(buf[0]) == 0 {
		return 0
	}

	var sum float64
	for _, ch := range buf {
		for _, s := range ch {
			v := float64(s)
			sum += v * v
		}
	}
	return sum / float64(len(buf[0]))
}

// DB returns the sound pressure level of buf in decibels relative to full
// scale. A buffer of digital silence yields -Inf.
func DB(buf [][]float32) float64 {
	return 10 * math.Log10(Energy(buf))
}

// IsSilent reports whether the level of buf is below thresholdDB.
func IsSilent(buf [][]float32, thresholdDB float64) bool {
	return DB(buf) < thresholdDB
}

// Classifier is the default silence classifier. It has no state and is
// safe for concurrent use.
type Classifier struct{}

// Silent implements the tracker's classifier contract with IsSilent.
func (Classifier) Silent(buf [][]float32, thresholdDB float64) bool {
	return IsSilent(buf, thresholdDB)
}
