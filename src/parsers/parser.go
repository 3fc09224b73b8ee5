package parsers

import (
	"io"

	"github.com/username/ssnreport/backend/src/parsers/monthly"
	"github.com/username/ssnreport/backend/src/parsers/weekly"
)

// The subpackages return their typed records directly; these adapters lift
// them into the common IngestResult and enforce the no-valid-rows failure.

type weeklyAdapter struct {
	parser *weekly.Parser
}

func (a weeklyAdapter) Ingest(file io.Reader) (*IngestResult, error) {
	ops, rejections, err := a.parser.Parse(file)
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return nil, ErrNoValidRows
	}
	return &IngestResult{
		Operations: ops,
		Rejections: rejections,
		Total:      len(ops),
	}, nil
}

type monthlyAdapter struct {
	parser *monthly.Parser
}

func (a monthlyAdapter) Ingest(file io.Reader) (*IngestResult, error) {
	stocks, rejections, err := a.parser.Parse(file)
	if err != nil {
		return nil, err
	}
	if len(stocks) == 0 {
		return nil, ErrNoValidRows
	}
	return &IngestResult{
		Stocks:     stocks,
		Rejections: rejections,
		Total:      len(stocks),
	}, nil
}
