package services

import (
	"context"
	"errors"
	"io"

	"github.com/username/ssnreport/backend/src/models"
	"github.com/username/ssnreport/backend/src/parsers"
)

var (
	ErrParsingFailed        = errors.New("spreadsheet parsing failed")
	ErrPresentationBlocked  = errors.New("another version of this presentation is awaiting the regulator")
	ErrInvalidState         = errors.New("presentation state does not allow this action")
	ErrPresentationNotFound = errors.New("presentation not found")
)

// UploadOutcome is what the caller shows the user for preview/confirm: the
// presentation that was loaded plus the ingestion report.
type UploadOutcome struct {
	Presentation *models.Presentation `json:"presentation"`
	Total        int                  `json:"total"`
	Rejections   []models.RowError    `json:"rejections"`
}

// PresentationService drives the filing lifecycle. Remote failures always
// leave the presentation untouched so every action is safely retryable.
type PresentationService interface {
	ProcessUpload(fileReader io.Reader, cronograma, deliveryKind string) (*UploadOutcome, error)
	Submit(ctx context.Context, presentationID int64) (*models.Presentation, error)
	Confirm(ctx context.Context, presentationID int64) (*models.Presentation, error)
	RequestRectification(ctx context.Context, presentationID int64, reason string) (*models.Presentation, error)
	ApplyRectificationOutcome(presentationID int64, granted bool, responseBody string) (*models.Presentation, error)
	OpenRectifiedVersion(presentationID int64) (*models.Presentation, error)

	GetPresentation(presentationID int64) (*models.Presentation, error)
	ListPresentations() ([]*models.Presentation, error)
	GetRecords(presentationID int64) (*parsers.IngestResult, error)
}
