package parsers

import (
	"errors"
	"io"

	"github.com/username/ssnreport/backend/src/models"
)

// ErrNoValidRows means the spreadsheet was readable but produced zero
// acceptable records. Ingestion fails entirely in that case.
var ErrNoValidRows = errors.New("spreadsheet produced no valid rows")

// IngestResult is the structured outcome of one spreadsheet ingestion: the
// accepted typed records plus the per-row rejections that did not stop the
// batch.
type IngestResult struct {
	Operations []models.Operation `json:"operations,omitempty"`
	Stocks     []models.Stock     `json:"stocks,omitempty"`
	Rejections []models.RowError  `json:"rejections"`
	Total      int                `json:"total"`
}

// Ingestor reads one spreadsheet and produces normalized records for a
// presentation.
type Ingestor interface {
	Ingest(file io.Reader) (*IngestResult, error)
}
