// backend/src/services/presentation_service.go
package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/ssnreport/backend/src/database"
	"github.com/username/ssnreport/backend/src/logger"
	"github.com/username/ssnreport/backend/src/models"
	"github.com/username/ssnreport/backend/src/parsers"
	"github.com/username/ssnreport/backend/src/ssn"
	"github.com/username/ssnreport/backend/src/storage"
	"github.com/username/ssnreport/backend/src/wire"
)

const (
	ckPresentationList = "presentation_list_%s"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type presentationServiceImpl struct {
	companyCode string
	codec       *wire.Codec
	client      *ssn.Client
	artifacts   storage.ArtifactStore
	notifier    NotificationService
	listCache   *cache.Cache
}

func NewPresentationService(
	companyCode string,
	codec *wire.Codec,
	client *ssn.Client,
	artifacts storage.ArtifactStore,
	notifier NotificationService,
	listCache *cache.Cache,
) PresentationService {
	return &presentationServiceImpl{
		companyCode: companyCode,
		codec:       codec,
		client:      client,
		artifacts:   artifacts,
		notifier:    notifier,
		listCache:   listCache,
	}
}

// ProcessUpload ingests a spreadsheet into the current editable version of the
// (cronograma, kind) identity, creating that version if needed. Existing rows
// of the draft are replaced wholesale.
func (s *presentationServiceImpl) ProcessUpload(fileReader io.Reader, cronograma, deliveryKind string) (*UploadOutcome, error) {
	overallStartTime := time.Now()
	logger.L.Info("ProcessUpload START", "cronograma", cronograma, "deliveryKind", deliveryKind)

	fileData, err := io.ReadAll(fileReader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading upload: %v", ErrParsingFailed, err)
	}

	// Parse before touching the database so a bad spreadsheet never leaves a
	// half-created draft behind.
	ingestor, err := parsers.GetIngestor(deliveryKind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	result, err := ingestor.Ingest(bytes.NewReader(fileData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	presentation, err := s.editablePresentation(cronograma, deliveryKind)
	if err != nil {
		return nil, err
	}

	sourcePath, err := s.artifacts.SaveSpreadsheet(presentation.ID, cronograma, fileData)
	if err != nil {
		return nil, fmt.Errorf("saving source spreadsheet: %w", err)
	}

	rejectionsJSON, err := json.Marshal(result.Rejections)
	if err != nil {
		return nil, fmt.Errorf("encoding rejections: %w", err)
	}

	// Replace rows and flip state in one transaction so a failed write never
	// leaves a half-loaded draft.
	dbTx, err := database.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	if deliveryKind == models.KindWeekly {
		if err := models.ReplaceOperations(dbTx, presentation.ID, result.Operations); err != nil {
			return nil, err
		}
	} else {
		if err := models.ReplaceStocks(dbTx, presentation.ID, result.Stocks); err != nil {
			return nil, err
		}
	}

	if err := presentation.Transition(models.StateLoaded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	presentation.SourceFilePath = sourcePath
	presentation.ValidationErrors = string(rejectionsJSON)
	if err := presentation.Update(dbTx); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing upload: %w", err)
	}

	s.invalidateListCache()
	logger.L.Info("ProcessUpload END", "presentationID", presentation.ID,
		"total", result.Total, "rejections", len(result.Rejections), "duration", time.Since(overallStartTime))

	return &UploadOutcome{
		Presentation: presentation,
		Total:        result.Total,
		Rejections:   result.Rejections,
	}, nil
}

// editablePresentation returns the version of the identity that uploads may
// target: the latest version when it is still a draft, or a fresh version
// when the identity has none. A blocking sibling forbids both.
func (s *presentationServiceImpl) editablePresentation(cronograma, deliveryKind string) (*models.Presentation, error) {
	if blocking, err := models.BlockingSibling(database.DB, s.companyCode, cronograma, deliveryKind, 0); err != nil {
		return nil, err
	} else if blocking != nil {
		return nil, fmt.Errorf("%w: version %d is %s", ErrPresentationBlocked, blocking.Version, blocking.State)
	}

	version, err := models.NextVersion(database.DB, s.companyCode, cronograma, deliveryKind)
	if err != nil {
		return nil, err
	}
	if version > 1 {
		// Reuse the newest version while it is still editable.
		latest, err := s.latestVersion(cronograma, deliveryKind)
		if err != nil {
			return nil, err
		}
		if latest != nil && latest.CanUpload() {
			return latest, nil
		}
	}

	presentation := &models.Presentation{
		CompanyCode:  s.companyCode,
		Cronograma:   cronograma,
		DeliveryKind: deliveryKind,
		Version:      version,
		State:        models.StateEmpty,
	}
	if err := presentation.Insert(database.DB); err != nil {
		return nil, err
	}
	logger.L.Info("Presentation created", "presentationID", presentation.ID,
		"cronograma", cronograma, "deliveryKind", deliveryKind, "version", version)
	return presentation, nil
}

func (s *presentationServiceImpl) latestVersion(cronograma, deliveryKind string) (*models.Presentation, error) {
	all, err := models.ListPresentations(database.DB, s.companyCode)
	if err != nil {
		return nil, err
	}
	var latest *models.Presentation
	for _, p := range all {
		if p.Cronograma != cronograma || p.DeliveryKind != deliveryKind {
			continue
		}
		if latest == nil || p.Version > latest.Version {
			latest = p
		}
	}
	return latest, nil
}

// Submit encodes the loaded presentation into the regulator's wire format and
// posts it. The state only advances after the remote call succeeded.
func (s *presentationServiceImpl) Submit(ctx context.Context, presentationID int64) (*models.Presentation, error) {
	presentation, err := s.GetPresentation(presentationID)
	if err != nil {
		return nil, err
	}
	if !presentation.CanSubmit() {
		return nil, fmt.Errorf("%w: cannot submit from state %s", ErrInvalidState, presentation.State)
	}

	var resp *ssn.Response
	if presentation.DeliveryKind == models.KindWeekly {
		ops, err := models.FetchOperations(database.DB, presentation.ID)
		if err != nil {
			return nil, err
		}
		payload, err := s.codec.Weekly(presentation, ops)
		if err != nil {
			return nil, fmt.Errorf("encoding weekly payload: %w", err)
		}
		if err := s.persistWirePayload(presentation, payload); err != nil {
			return nil, err
		}
		if resp, err = s.client.SubmitWeekly(ctx, payload); err != nil {
			return nil, err
		}
	} else {
		stocks, err := models.FetchStocks(database.DB, presentation.ID)
		if err != nil {
			return nil, err
		}
		payload, err := s.codec.Monthly(presentation, stocks)
		if err != nil {
			return nil, fmt.Errorf("encoding monthly payload: %w", err)
		}
		if err := s.persistWirePayload(presentation, payload); err != nil {
			return nil, err
		}
		if resp, err = s.client.SubmitMonthly(ctx, payload); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	if err := presentation.Transition(models.StateSubmitted); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	presentation.PresentedAt = &now
	presentation.ExternalRef = resp.ID
	presentation.ResponseBody = string(resp.Raw)
	if err := presentation.Update(database.DB); err != nil {
		return nil, err
	}

	s.invalidateListCache()
	logger.L.Info("Presentation submitted", "presentationID", presentation.ID,
		"externalRef", presentation.ExternalRef, "estado", resp.Estado)
	return presentation, nil
}

func (s *presentationServiceImpl) persistWirePayload(presentation *models.Presentation, payload any) error {
	wireJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding wire payload: %w", err)
	}
	wirePath, err := s.artifacts.SaveWirePayload(presentation.ID, presentation.Cronograma, wireJSON)
	if err != nil {
		return fmt.Errorf("saving wire payload: %w", err)
	}
	presentation.WireFilePath = wirePath
	return nil
}

// Confirm closes a submitted delivery with the regulator and stamps the
// confirmation time. The state stays SUBMITTED.
func (s *presentationServiceImpl) Confirm(ctx context.Context, presentationID int64) (*models.Presentation, error) {
	presentation, err := s.GetPresentation(presentationID)
	if err != nil {
		return nil, err
	}
	if presentation.State != models.StateSubmitted {
		return nil, fmt.Errorf("%w: cannot confirm from state %s", ErrInvalidState, presentation.State)
	}

	resp, err := s.client.Confirm(ctx, presentation.DeliveryKind, presentation.Cronograma)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	presentation.ConfirmedAt = &now
	if err := presentation.Update(database.DB); err != nil {
		return nil, err
	}

	s.invalidateListCache()
	logger.L.Info("Presentation confirmed", "presentationID", presentation.ID, "estado", resp.Estado)
	return presentation, nil
}

// RequestRectification asks the regulator to reopen a submitted delivery.
// Approval is asynchronous; the poller advances the state later.
func (s *presentationServiceImpl) RequestRectification(ctx context.Context, presentationID int64, reason string) (*models.Presentation, error) {
	presentation, err := s.GetPresentation(presentationID)
	if err != nil {
		return nil, err
	}
	if !presentation.CanRequestRectification() {
		return nil, fmt.Errorf("%w: cannot request rectification from state %s", ErrInvalidState, presentation.State)
	}

	resp, err := s.client.RequestRectification(ctx, presentation.DeliveryKind, presentation.Cronograma, reason)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := presentation.Transition(models.StateRectificationRequested); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	presentation.RectificationRequestedAt = &now
	if reason != "" {
		presentation.Notes = reason
	}
	presentation.ResponseBody = string(resp.Raw)
	if err := presentation.Update(database.DB); err != nil {
		return nil, err
	}

	s.invalidateListCache()
	logger.L.Info("Rectification requested", "presentationID", presentation.ID, "estado", resp.Estado)
	return presentation, nil
}

// ApplyRectificationOutcome records the regulator's verdict on a pending
// rectification. Called by the poller once the remote status lands in one of
// the configured sets.
func (s *presentationServiceImpl) ApplyRectificationOutcome(presentationID int64, granted bool, responseBody string) (*models.Presentation, error) {
	presentation, err := s.GetPresentation(presentationID)
	if err != nil {
		return nil, err
	}

	target := models.StateRectificationGranted
	if !granted {
		target = models.StateRejected
	}
	if err := presentation.Transition(target); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	now := time.Now().UTC()
	presentation.RectificationResolvedAt = &now
	if responseBody != "" {
		presentation.ResponseBody = responseBody
	}
	if err := presentation.Update(database.DB); err != nil {
		return nil, err
	}

	s.invalidateListCache()
	logger.L.Info("Rectification outcome applied", "presentationID", presentation.ID, "state", presentation.State)

	if err := s.notifier.SendRectificationOutcome(presentation.Cronograma, presentation.DeliveryKind, presentation.Version, granted); err != nil {
		// Notification failures never undo the lifecycle change.
		logger.L.Warn("Failed to send rectification outcome notice", "presentationID", presentation.ID, "error", err)
	}
	return presentation, nil
}

// OpenRectifiedVersion clones the identity of a granted rectification into a
// fresh version that starts over at EMPTY.
func (s *presentationServiceImpl) OpenRectifiedVersion(presentationID int64) (*models.Presentation, error) {
	origin, err := s.GetPresentation(presentationID)
	if err != nil {
		return nil, err
	}
	if !origin.CanOpenNewVersion() {
		return nil, fmt.Errorf("%w: cannot open a new version from state %s", ErrInvalidState, origin.State)
	}
	if blocking, err := models.BlockingSibling(database.DB, origin.CompanyCode, origin.Cronograma, origin.DeliveryKind, origin.ID); err != nil {
		return nil, err
	} else if blocking != nil {
		return nil, fmt.Errorf("%w: version %d is %s", ErrPresentationBlocked, blocking.Version, blocking.State)
	}

	version, err := models.NextVersion(database.DB, origin.CompanyCode, origin.Cronograma, origin.DeliveryKind)
	if err != nil {
		return nil, err
	}
	clone := &models.Presentation{
		CompanyCode:  origin.CompanyCode,
		Cronograma:   origin.Cronograma,
		DeliveryKind: origin.DeliveryKind,
		Version:      version,
		State:        models.StateEmpty,
		Notes:        fmt.Sprintf("rectifies version %d", origin.Version),
	}
	if err := clone.Insert(database.DB); err != nil {
		return nil, err
	}

	s.invalidateListCache()
	logger.L.Info("Rectified version opened", "originID", origin.ID, "presentationID", clone.ID, "version", version)
	return clone, nil
}

func (s *presentationServiceImpl) GetPresentation(presentationID int64) (*models.Presentation, error) {
	presentation, err := models.GetPresentationByID(database.DB, presentationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPresentationNotFound
		}
		return nil, err
	}
	return presentation, nil
}

func (s *presentationServiceImpl) ListPresentations() ([]*models.Presentation, error) {
	cacheKey := fmt.Sprintf(ckPresentationList, s.companyCode)
	if cached, found := s.listCache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for presentation list", "companyCode", s.companyCode)
		return cached.([]*models.Presentation), nil
	}

	presentations, err := models.ListPresentations(database.DB, s.companyCode)
	if err != nil {
		return nil, err
	}
	s.listCache.Set(cacheKey, presentations, DefaultCacheExpiration)
	return presentations, nil
}

func (s *presentationServiceImpl) GetRecords(presentationID int64) (*parsers.IngestResult, error) {
	presentation, err := s.GetPresentation(presentationID)
	if err != nil {
		return nil, err
	}

	result := &parsers.IngestResult{}
	if presentation.DeliveryKind == models.KindWeekly {
		if result.Operations, err = models.FetchOperations(database.DB, presentation.ID); err != nil {
			return nil, err
		}
		result.Total = len(result.Operations)
	} else {
		if result.Stocks, err = models.FetchStocks(database.DB, presentation.ID); err != nil {
			return nil, err
		}
		result.Total = len(result.Stocks)
	}
	if presentation.ValidationErrors != "" {
		if err := json.Unmarshal([]byte(presentation.ValidationErrors), &result.Rejections); err != nil {
			logger.L.Warn("Unreadable stored validation errors", "presentationID", presentation.ID, "error", err)
		}
	}
	return result, nil
}

func (s *presentationServiceImpl) invalidateListCache() {
	s.listCache.Delete(fmt.Sprintf(ckPresentationList, s.companyCode))
}
