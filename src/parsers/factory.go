// backend/src/parsers/factory.go
package parsers

import (
	"fmt"

	"github.com/username/ssnreport/backend/src/models"
	"github.com/username/ssnreport/backend/src/parsers/monthly"
	"github.com/username/ssnreport/backend/src/parsers/weekly"
)

func GetIngestor(deliveryKind string) (Ingestor, error) {
	switch deliveryKind {
	case models.KindWeekly:
		return weeklyAdapter{weekly.NewParser()}, nil
	case models.KindMonthly:
		return monthlyAdapter{monthly.NewParser()}, nil
	default:
		return nil, fmt.Errorf("no ingestor available for delivery kind: %s", deliveryKind)
	}
}
