package ssn

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/username/ssnreport/backend/src/database"
	"github.com/username/ssnreport/backend/src/logger"
)

func init() {
	logger.InitLogger("error")
}

func testConfig() Config {
	return Config{
		BaseURL:     "https://testri.example.invalid/api",
		User:        "usuario-prueba",
		CompanyCode: "0777",
		Password:    "secreto",
		Mock:        true,
		Timeout:     5 * time.Second,
	}
}

func newTestManager(t *testing.T) *TokenManager {
	t.Helper()
	database.InitDB(filepath.Join(t.TempDir(), "ssn_test.db"))
	return NewTokenManager(testConfig(), database.DB)
}

func TestMockTokenDeterministic(t *testing.T) {
	m := newTestManager(t)

	first, err := m.Authenticate()
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	second, err := m.Authenticate()
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if first.Value == "" {
		t.Fatal("mock token value is empty")
	}
	if first.Value != second.Value {
		t.Errorf("mock tokens differ between runs: %q vs %q", first.Value, second.Value)
	}
	if !first.Mock {
		t.Error("mock token not flagged as mock")
	}
	if !first.Valid() {
		t.Error("mock token should always be valid")
	}
}

func TestTokenValidity(t *testing.T) {
	var nilToken *Token
	if nilToken.Valid() {
		t.Error("nil token must not be valid")
	}

	expired := &Token{Value: "x", ExpiresAt: time.Now().Add(-time.Minute)}
	if expired.Valid() {
		t.Error("expired token must not be valid")
	}

	live := &Token{Value: "x", ExpiresAt: time.Now().Add(time.Hour)}
	if !live.Valid() {
		t.Error("unexpired token must be valid")
	}

	mockNoExpiry := &Token{Value: "x", Mock: true}
	if !mockNoExpiry.Valid() {
		t.Error("mock token with no expiry must be valid")
	}
}

func TestTokenSurvivesRestart(t *testing.T) {
	database.InitDB(filepath.Join(t.TempDir(), "ssn_restart.db"))

	first := NewTokenManager(testConfig(), database.DB)
	issued, err := first.Authenticate()
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	// A fresh manager over the same database simulates a process restart: the
	// durable store must yield the token without re-authenticating.
	second := NewTokenManager(testConfig(), database.DB)
	loaded := second.GetToken()
	if loaded == nil {
		t.Fatal("expected stored token after restart, got nil")
	}
	if loaded.Value != issued.Value {
		t.Errorf("restored token %q differs from issued %q", loaded.Value, issued.Value)
	}
}

func TestInvalidateDropsToken(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Authenticate(); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	m.Invalidate()
	if token := m.GetToken(); token != nil && token.Valid() {
		t.Error("token still valid after Invalidate")
	}
}

func TestMockResponderStates(t *testing.T) {
	m := &mockResponder{delay: time.Millisecond}
	ctx := context.Background()

	tests := []struct {
		method string
		path   string
		estado string
	}{
		{http.MethodPost, "/inv/entregaSemanal", "PRESENTADA"},
		{http.MethodPost, "/inv/entregaMensual/confirmar", "CONFIRMADA"},
		{http.MethodPut, "/inv/entregaSemanal", "RECTIFICACION_PENDIENTE"},
		{http.MethodGet, "/inv/entregaMensual", "RECTIFICADA"},
	}
	for _, tt := range tests {
		resp, err := m.respond(ctx, tt.method, tt.path)
		if err != nil {
			t.Fatalf("respond(%s %s): %v", tt.method, tt.path, err)
		}
		if resp.Estado != tt.estado {
			t.Errorf("respond(%s %s) estado = %q, want %q", tt.method, tt.path, resp.Estado, tt.estado)
		}
		if resp.ID == "" {
			t.Errorf("respond(%s %s) returned empty id", tt.method, tt.path)
		}
		if len(resp.Raw) == 0 {
			t.Errorf("respond(%s %s) returned empty raw body", tt.method, tt.path)
		}
	}
}

func TestMockResponderHonorsCancellation(t *testing.T) {
	m := newMockResponder()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.respond(ctx, http.MethodPost, "/inv/entregaSemanal"); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
