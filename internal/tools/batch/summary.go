package batch

import (
	"encoding/json"
	"fmt"

	"github.com/teemow/batchfs/internal/fileops"
)

// Outcome status values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Outcome is the recorded result of one operation.
type Outcome struct {
	Operation fileops.Operation `json:"operation"`
	Result    *fileops.Result   `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	Code      fileops.ErrorCode `json:"code,omitempty"`
	Status    string            `json:"status"`
}

// NewSuccessOutcome records a successful operation.
func NewSuccessOutcome(op fileops.Operation, res *fileops.Result) *Outcome {
	return &Outcome{
		Operation: op,
		Result:    res,
		Status:    StatusSuccess,
	}
}

// NewFailureOutcome records a failed operation with the error unmasked.
func NewFailureOutcome(op fileops.Operation, err error) *Outcome {
	return &Outcome{
		Operation: op,
		Error:     err.Error(),
		Code:      fileops.Classify(err),
		Status:    StatusFailed,
	}
}

// Summary is the aggregated result of a batch run.
//
// Total counts submitted operations. Successful and Failed count recorded
// outcomes, so their sum is Attempted, which is below Total when the run
// stopped early. Results holds success payloads and Errors failure records,
// both in input order.
type Summary struct {
	BatchID    string            `json:"batchId"`
	State      State             `json:"state"`
	Total      int               `json:"total"`
	Attempted  int               `json:"attempted"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	DurationMs int64             `json:"durationMs"`
	Results    []*fileops.Result `json:"results"`
	Errors     []*Outcome        `json:"errors"`
}

// summarize folds index-aligned outcomes into a Summary. Nil entries are
// operations that were never scheduled.
func summarize(outcomes []*Outcome) *Summary {
	s := &Summary{
		Total:   len(outcomes),
		Results: make([]*fileops.Result, 0, len(outcomes)),
		Errors:  make([]*Outcome, 0),
	}
	for _, o := range outcomes {
		switch {
		case o == nil:
			continue
		case o.Status == StatusSuccess:
			s.Successful++
			s.Results = append(s.Results, o.Result)
		default:
			s.Failed++
			s.Errors = append(s.Errors, o)
		}
	}
	s.Attempted = s.Successful + s.Failed
	return s
}

// FormatSummary renders s as indented JSON.
func FormatSummary(s *Summary) (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode batch summary: %w", err)
	}
	return string(data), nil
}
