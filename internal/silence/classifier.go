package silence

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Classifier decides whether a buffer of samples is silent at the given
// threshold. Implementations must not retain or modify buf; the tracker
// passes views into its own storage, including sub-windows of a block.
type Classifier interface {
	Silent(buf [][]float32, thresholdDB float64) bool
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(buf [][]float32, thresholdDB float64) bool

// Silent calls f.
func (f ClassifierFunc) Silent(buf [][]float32, thresholdDB float64) bool {
	return f(buf, thresholdDB)
}

var validate = validator.New()

// thresholdTag mirrors MinThresholdDB and MaxThresholdDB.
const thresholdTag = "gte=-120,lte=0"

// ValidateThreshold checks db against the declared threshold range.
func ValidateThreshold(db float64) error {
	if err := validate.Var(db, thresholdTag); err != nil {
		return fmt.Errorf("%w: %.2f dB not in [%.0f, %.0f]", ErrThresholdRange, db, MinThresholdDB, MaxThresholdDB)
	}
	return nil
}
