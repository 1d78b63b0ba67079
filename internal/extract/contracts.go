package extract

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/panel-extractor/constants"
)

// Record is one validated item. Values holds every field of the owning layout:
// string, int64, float64, []string, []float64, or nil for an optional field that was not read.
type Record struct {
	Index    int            `json:"index"` // position in the model's items list
	Layout   int            `json:"layout_id"`
	Values   map[string]any `json:"values"`
	Warnings []string       `json:"warnings,omitempty"`
}

// ItemRejection is an item that failed coercion or schema validation. It is rejected whole.
type ItemRejection struct {
	Index    int      `json:"index"`
	Item     any      `json:"item"`
	Problems []string `json:"problems"`
}

func (r ItemRejection) Error() string {
	return fmt.Sprintf("item %d: %s: %s", r.Index, constants.ReasonSchemaViolation, strings.Join(r.Problems, "; "))
}

// Extraction is the outcome of a successful extraction call. Records may be empty when
// every item was rejected.
type Extraction struct {
	Layout     int
	Records    []Record
	Rejections []ItemRejection
	Raw        string
}

// Failure ends extraction for the whole image. Raw keeps the model reply for diagnosis.
type Failure struct {
	Reason constants.RejectReason
	Raw    string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", f.Reason, f.Err)
	}
	return fmt.Sprintf("extraction failed: %s", f.Reason)
}

func (f *Failure) Unwrap() error {
	return f.Err
}
