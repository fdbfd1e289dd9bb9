package sheet

import "fmt"

// RowError is a per-row problem reported back to the uploader. The batch
// keeps going when one is recorded.
type RowError struct {
	RowNumber int    `json:"row_number"`
	PersonID  *int64 `json:"personid,omitempty"`
	Message   string `json:"message"`
}

func (e RowError) String() string {
	if e.PersonID != nil {
		return fmt.Sprintf("row %d (%d): %s", e.RowNumber, *e.PersonID, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.RowNumber, e.Message)
}
