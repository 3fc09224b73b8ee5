package services

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/require"
	"github.com/username/ssnreport/backend/src/database"
	"github.com/username/ssnreport/backend/src/logger"
	"github.com/username/ssnreport/backend/src/models"
	"github.com/username/ssnreport/backend/src/ssn"
	"github.com/username/ssnreport/backend/src/storage"
	"github.com/username/ssnreport/backend/src/wire"
	"github.com/xuri/excelize/v2"
)

func init() {
	logger.InitLogger("error")
}

const testCompanyCode = "0777"

func newTestService(t *testing.T) PresentationService {
	t.Helper()
	database.InitDB(filepath.Join(t.TempDir(), "service_test.db"))

	cfg := ssn.Config{
		BaseURL:     "https://testri.example.invalid/api",
		User:        "usuario-prueba",
		CompanyCode: testCompanyCode,
		Password:    "secreto",
		Mock:        true,
		Timeout:     5 * time.Second,
	}
	tokens := ssn.NewTokenManager(cfg, database.DB)
	client := ssn.NewClient(cfg, tokens)

	return NewPresentationService(
		testCompanyCode,
		wire.NewCodec(testCompanyCode),
		client,
		&storage.DiscardArtifactStore{},
		&MockNotificationService{},
		cache.New(time.Minute, time.Minute),
	)
}

// weeklyWorkbook builds a small operations spreadsheet: two valid purchases
// and one row missing its species code.
func weeklyWorkbook(t *testing.T) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "Compras"))
	require.NoError(t, f.SetCellValue("Compras", "A1", "Planilla"))
	require.NoError(t, f.SetCellValue("Compras", "A2", "Encabezados"))
	rows := [][]any{
		{"AC", "PAMP", "50", "1", "V", "14/07/2025", "1.200,00", "16/07/2025"},
		{"TP", "AL30", "1000", "1", "T", "14/07/2025", "68,50", "16/07/2025"},
		{"AC", "", "10", "1", "V", "14/07/2025", "100", "16/07/2025"},
	}
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+3)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Compras", cellRef, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func TestPresentationLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	const cronograma = "2025-29"

	// Upload: a fresh identity gets version 1 in LOADED.
	outcome, err := svc.ProcessUpload(weeklyWorkbook(t), cronograma, models.KindWeekly)
	require.NoError(t, err)
	require.Equal(t, models.StateLoaded, outcome.Presentation.State)
	require.Equal(t, 1, outcome.Presentation.Version)
	require.Equal(t, 2, outcome.Total)
	require.Len(t, outcome.Rejections, 1)

	id := outcome.Presentation.ID

	// Re-upload replaces the draft in place; no new version appears.
	again, err := svc.ProcessUpload(weeklyWorkbook(t), cronograma, models.KindWeekly)
	require.NoError(t, err)
	require.Equal(t, id, again.Presentation.ID)

	records, err := svc.GetRecords(id)
	require.NoError(t, err)
	require.Len(t, records.Operations, 2)
	require.Len(t, records.Rejections, 1)

	// Submit advances to SUBMITTED and captures the remote reference.
	submitted, err := svc.Submit(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.StateSubmitted, submitted.State)
	require.NotEmpty(t, submitted.ExternalRef)
	require.NotNil(t, submitted.PresentedAt)
	require.NotEmpty(t, submitted.ResponseBody)

	// A submitted version blocks further uploads to the same identity.
	_, err = svc.ProcessUpload(weeklyWorkbook(t), cronograma, models.KindWeekly)
	require.ErrorIs(t, err, ErrPresentationBlocked)

	// Submitting twice is an invalid state.
	_, err = svc.Submit(ctx, id)
	require.ErrorIs(t, err, ErrInvalidState)

	// Confirm stamps the time but keeps the state.
	confirmed, err := svc.Confirm(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.StateSubmitted, confirmed.State)
	require.NotNil(t, confirmed.ConfirmedAt)

	// Rectification request and its asynchronous grant.
	requested, err := svc.RequestRectification(ctx, id, "monto mal informado")
	require.NoError(t, err)
	require.Equal(t, models.StateRectificationRequested, requested.State)
	require.NotNil(t, requested.RectificationRequestedAt)
	require.Equal(t, "monto mal informado", requested.Notes)

	granted, err := svc.ApplyRectificationOutcome(id, true, `{"estado":"RECTIFICADA"}`)
	require.NoError(t, err)
	require.Equal(t, models.StateRectificationGranted, granted.State)
	require.NotNil(t, granted.RectificationResolvedAt)

	// A granted rectification opens version 2, starting over empty.
	v2, err := svc.OpenRectifiedVersion(id)
	require.NoError(t, err)
	require.Equal(t, 2, v2.Version)
	require.Equal(t, models.StateEmpty, v2.State)

	// The new version accepts uploads again.
	outcome2, err := svc.ProcessUpload(weeklyWorkbook(t), cronograma, models.KindWeekly)
	require.NoError(t, err)
	require.Equal(t, v2.ID, outcome2.Presentation.ID)
	require.Equal(t, models.StateLoaded, outcome2.Presentation.State)

	list, err := svc.ListPresentations()
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestSubmitRequiresLoadedState(t *testing.T) {
	svc := newTestService(t)

	p := &models.Presentation{
		CompanyCode:  testCompanyCode,
		Cronograma:   "2025-30",
		DeliveryKind: models.KindWeekly,
		Version:      1,
		State:        models.StateEmpty,
	}
	require.NoError(t, p.Insert(database.DB))

	_, err := svc.Submit(context.Background(), p.ID)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestRejectedRectificationIsTerminal(t *testing.T) {
	svc := newTestService(t)

	p := &models.Presentation{
		CompanyCode:  testCompanyCode,
		Cronograma:   "2025-31",
		DeliveryKind: models.KindWeekly,
		Version:      1,
		State:        models.StateRectificationRequested,
	}
	require.NoError(t, p.Insert(database.DB))

	rejected, err := svc.ApplyRectificationOutcome(p.ID, false, `{"estado":"RECHAZADA"}`)
	require.NoError(t, err)
	require.Equal(t, models.StateRejected, rejected.State)

	// No new version can come out of a rejection.
	_, err = svc.OpenRectifiedVersion(p.ID)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestUploadUnknownKindFails(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.ProcessUpload(weeklyWorkbook(t), "2025-32", "quincenal")
	require.ErrorIs(t, err, ErrParsingFailed)
}

func TestGetPresentationNotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.GetPresentation(99999)
	require.ErrorIs(t, err, ErrPresentationNotFound)
}
