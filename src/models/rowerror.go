package models

import "fmt"

// RowError is a per-row ingestion rejection. Rejected rows are reported back
// to the caller but never abort the batch.
type RowError struct {
	Sheet  string `json:"sheet"`
	Row    int    `json:"row"` // 1-based spreadsheet row number
	Reason string `json:"reason"`
}

func (e RowError) String() string {
	return fmt.Sprintf("%s!%d: %s", e.Sheet, e.Row, e.Reason)
}
