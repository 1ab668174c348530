package handlers

import (
	"math"

	"github.com/cyverse-de/placement-notifier/model"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// applicationRow contains the columns of the applications table that we care about.
type applicationRow struct {
	Status *string `mapstructure:"status"`
}

// evaluationRow contains the columns of the evaluations table that we care about.
type evaluationRow struct {
	Category       string   `mapstructure:"category"`
	Score          *float64 `mapstructure:"score"`
	CorrectAnswers *float64 `mapstructure:"correct_answers"`
	TotalQuestions *float64 `mapstructure:"total_questions"`
}

// counts returns the answer counts as integers. Counts that are missing or fractional can't be
// described.
func (r *evaluationRow) counts() (correct, total int64, err error) {
	if r.CorrectAnswers == nil || r.TotalQuestions == nil {
		return 0, 0, errors.New("missing answer counts")
	}
	for _, c := range []float64{*r.CorrectAnswers, *r.TotalQuestions} {
		if c != math.Trunc(c) || math.IsInf(c, 0) {
			return 0, 0, errors.Errorf("answer count is not a whole number: %v", c)
		}
	}
	return int64(*r.CorrectAnswers), int64(*r.TotalQuestions), nil
}

// decodeRow decodes a row snapshot into a typed row structure. Numeric columns that arrive as
// strings are converted, which is common for change feeds that serialize numerics as text.
// A nil row leaves the result untouched.
func decodeRow(row model.Row, result interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           result,
	})
	if err != nil {
		return errors.Wrap(err, "unable to create the row decoder")
	}
	if err := decoder.Decode(map[string]interface{}(row)); err != nil {
		return errors.Wrap(err, "unable to decode the row")
	}
	return nil
}
