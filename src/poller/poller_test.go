package poller

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/require"
	"github.com/username/ssnreport/backend/src/database"
	"github.com/username/ssnreport/backend/src/logger"
	"github.com/username/ssnreport/backend/src/models"
	"github.com/username/ssnreport/backend/src/services"
	"github.com/username/ssnreport/backend/src/ssn"
	"github.com/username/ssnreport/backend/src/storage"
	"github.com/username/ssnreport/backend/src/wire"
)

func init() {
	logger.InitLogger("error")
}

const testCompanyCode = "0777"

func newTestPoller(t *testing.T) *RectificationPoller {
	t.Helper()
	database.InitDB(filepath.Join(t.TempDir(), "poller_test.db"))

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
	svc := services.NewPresentationService(
		testCompanyCode,
		wire.NewCodec(testCompanyCode),
		client,
		&storage.DiscardArtifactStore{},
		&services.MockNotificationService{},
		cache.New(time.Minute, time.Minute),
	)

	return NewRectificationPoller(svc, client, Config{
		Interval:  time.Minute,
		StartHour: 9,
		EndHour:   18,
		ItemDelay: time.Millisecond,
		Approved:  []string{"RECTIFICADA", "A"},
		Rejected:  []string{"RECHAZADA", "R"},
	})
}

func insertPending(t *testing.T, cronograma string) *models.Presentation {
	t.Helper()
	p := &models.Presentation{
		CompanyCode:  testCompanyCode,
		Cronograma:   cronograma,
		DeliveryKind: models.KindWeekly,
		Version:      1,
		State:        models.StateRectificationRequested,
	}
	require.NoError(t, p.Insert(database.DB))
	return p
}

// businessTuesday is a weekday timestamp inside [9,18).
var businessTuesday = time.Date(2025, time.July, 15, 11, 0, 0, 0, time.UTC)

func TestRunOnceAppliesApprovedOutcome(t *testing.T) {
	p := newTestPoller(t)
	p.now = func() time.Time { return businessTuesday }

	pending := insertPending(t, "2025-29")
	other := insertPending(t, "2025-30")

	require.NoError(t, p.RunOnce(context.Background()))

	// The mock status endpoint reports RECTIFICADA, which is in the approved
	// set, so both items resolve as granted.
	for _, id := range []int64{pending.ID, other.ID} {
		got, err := models.GetPresentationByID(database.DB, id)
		require.NoError(t, err)
		require.Equal(t, models.StateRectificationGranted, got.State)
		require.NotNil(t, got.RectificationResolvedAt)
	}

	runs, err := models.ListPollerRuns(database.DB, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, 2, runs[0].Scanned)
	require.Equal(t, 2, runs[0].Updated)
	require.Equal(t, 0, runs[0].Errored)
	require.NotNil(t, runs[0].FinishedAt)
}

func TestRunOnceSkipsOutsideBusinessHours(t *testing.T) {
	p := newTestPoller(t)
	insertPending(t, "2025-29")

	outside := []time.Time{
		time.Date(2025, time.July, 19, 11, 0, 0, 0, time.UTC), // Saturday
		time.Date(2025, time.July, 20, 11, 0, 0, 0, time.UTC), // Sunday
		time.Date(2025, time.July, 15, 8, 59, 0, 0, time.UTC), // before opening
		time.Date(2025, time.July, 15, 18, 0, 0, 0, time.UTC), // at closing, exclusive
	}
	for _, when := range outside {
		p.now = func() time.Time { return when }
		require.NoError(t, p.RunOnce(context.Background()))
	}

	// Nothing ran: the pending item is untouched and no audit rows exist.
	pending, err := models.ListPresentationsByState(database.DB, models.StateRectificationRequested)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	runs, err := models.ListPollerRuns(database.DB, 10)
	require.NoError(t, err)
	require.Empty(t, runs)
}

func TestRunOnceNoPendingWritesNoAudit(t *testing.T) {
	p := newTestPoller(t)
	p.now = func() time.Time { return businessTuesday }

	require.NoError(t, p.RunOnce(context.Background()))

	runs, err := models.ListPollerRuns(database.DB, 10)
	require.NoError(t, err)
	require.Empty(t, runs)
}
