// backend/src/ssn/token.go
package ssn

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"github.com/username/ssnreport/backend/src/logger"
)

// Config carries everything the SSN components need. It is injected at
// construction; the package never reads ambient configuration.
type Config struct {
	BaseURL     string
	User        string
	CompanyCode string
	Password    string
	Mock        bool
	Timeout     time.Duration
}

const (
	tokenCacheKey = "ssn_token"

	// Secret for mock-mode tokens. The mock token is a real JWT so the rest
	// of the pipeline exercises the same header plumbing as production.
	mockTokenSecret = "ssn-mock-environment"

	// Fallback validity when the login response carries no expiration.
	defaultTokenTTL = 6 * time.Hour
)

// Token is the bearer credential for the regulator's API. A mock token never
// expires.
type Token struct {
	Value       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Mock        bool      `json:"mock"`
	Username    string    `json:"username"`
	CompanyCode string    `json:"company_code"`
}

// Valid reports whether the token can still be presented to the API.
func (t *Token) Valid() bool {
	if t == nil {
		return false
	}
	return t.Mock || time.Now().Before(t.ExpiresAt)
}

// TokenManager acquires, caches and renews the SSN bearer credential. It is
// the single writer of the token cache; everything else only reads through
// GetToken.
type TokenManager struct {
	cfg        Config
	db         *sql.DB
	memCache   *cache.Cache
	httpClient *http.Client
	mu         sync.Mutex
}

func NewTokenManager(cfg Config, db *sql.DB) *TokenManager {
	return &TokenManager{
		cfg:      cfg,
		db:       db,
		memCache: cache.New(cache.NoExpiration, 10*time.Minute),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// GetToken returns the current valid token, looking in memory first, then in
// the durable store. A nil result means the caller must Authenticate.
func (m *TokenManager) GetToken() *Token {
	if cached, found := m.memCache.Get(tokenCacheKey); found {
		token := cached.(*Token)
		if token.Valid() {
			return token
		}
		m.memCache.Delete(tokenCacheKey)
	}

	token, err := m.loadStoredToken()
	if err != nil {
		logger.L.Warn("Failed to load stored SSN token", "error", err)
		return nil
	}
	if token.Valid() {
		m.memCache.Set(tokenCacheKey, token, cache.NoExpiration)
		return token
	}
	return nil
}

// Authenticate obtains a fresh token from the login endpoint (or mints a
// deterministic one in mock mode), persists it and makes it current. Expired
// durable entries are purged first. No retry happens here; callers decide.
func (m *TokenManager) Authenticate() (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.purgeExpired(); err != nil {
		logger.L.Warn("Failed to purge expired SSN tokens", "error", err)
	}

	var token *Token
	var err error
	if m.cfg.Mock {
		token, err = m.mintMockToken()
	} else {
		token, err = m.login()
	}
	if err != nil {
		return nil, err
	}

	if err := m.storeToken(token); err != nil {
		logger.L.Warn("Failed to persist SSN token", "error", err)
	}
	m.memCache.Set(tokenCacheKey, token, cache.NoExpiration)
	logger.L.Info("SSN token acquired", "mock", token.Mock, "expiresAt", token.ExpiresAt)
	return token, nil
}

// Invalidate drops the current token from both layers.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memCache.Delete(tokenCacheKey)
	if _, err := m.db.Exec(`DELETE FROM ssn_tokens WHERE username = ? AND company_code = ?`,
		m.cfg.User, m.cfg.CompanyCode); err != nil {
		logger.L.Warn("Failed to delete stored SSN tokens", "error", err)
	}
}

type loginRequest struct {
	Usuario  string `json:"usuario"`
	Cia      string `json:"cia"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token      string `json:"token"`
	Expiracion string `json:"expiracion"`
}

func (m *TokenManager) login() (*Token, error) {
	body, err := json.Marshal(loginRequest{
		Usuario:  m.cfg.User,
		Cia:      m.cfg.CompanyCode,
		Password: m.cfg.Password,
	})
	if err != nil {
		return nil, &AuthError{Reason: "encoding login request", Err: err}
	}

	req, err := http.NewRequest(http.MethodPost, m.cfg.BaseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return nil, &AuthError{Reason: "building login request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, &AuthError{Reason: "calling login endpoint", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{Reason: "reading login response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &AuthError{Reason: fmt.Sprintf("login returned status %d: %s", resp.StatusCode, string(respBody))}
	}

	var parsed loginResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &AuthError{Reason: "decoding login response", Err: err}
	}
	if parsed.Token == "" {
		return nil, &AuthError{Reason: "login response carried no token"}
	}

	expiresAt := time.Now().Add(defaultTokenTTL)
	if parsed.Expiracion != "" {
		if t, err := time.Parse(time.RFC3339, parsed.Expiracion); err == nil {
			expiresAt = t
		} else {
			logger.L.Warn("Unparsable token expiration from login, using default TTL", "expiracion", parsed.Expiracion)
		}
	}

	return &Token{
		Value:       parsed.Token,
		ExpiresAt:   expiresAt,
		Username:    m.cfg.User,
		CompanyCode: m.cfg.CompanyCode,
	}, nil
}

// mintMockToken synthesizes a deterministic credential: same user and company
// always yield the same token value, which keeps offline runs reproducible.
func (m *TokenManager) mintMockToken() (*Token, error) {
	claims := jwt.MapClaims{
		"sub":  m.cfg.User,
		"cia":  m.cfg.CompanyCode,
		"mock": true,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(mockTokenSecret))
	if err != nil {
		return nil, &AuthError{Reason: "signing mock token", Err: err}
	}
	return &Token{
		Value:       signed,
		Mock:        true,
		Username:    m.cfg.User,
		CompanyCode: m.cfg.CompanyCode,
	}, nil
}

func (m *TokenManager) loadStoredToken() (*Token, error) {
	row := m.db.QueryRow(`SELECT token, expires_at, is_mock FROM ssn_tokens
		WHERE username = ? AND company_code = ? ORDER BY id DESC LIMIT 1`,
		m.cfg.User, m.cfg.CompanyCode)
	var token Token
	var expiresAt sql.NullTime
	if err := row.Scan(&token.Value, &expiresAt, &token.Mock); err != nil {
		if err == sql.ErrNoRows {
			return &Token{}, nil
		}
		return nil, fmt.Errorf("scanning stored token: %w", err)
	}
	if expiresAt.Valid {
		token.ExpiresAt = expiresAt.Time
	}
	token.Username = m.cfg.User
	token.CompanyCode = m.cfg.CompanyCode
	return &token, nil
}

func (m *TokenManager) storeToken(token *Token) error {
	var expiresAt any
	if !token.ExpiresAt.IsZero() {
		expiresAt = token.ExpiresAt
	}
	_, err := m.db.Exec(`INSERT INTO ssn_tokens (username, company_code, token, expires_at, is_mock)
		VALUES (?, ?, ?, ?, ?)`,
		token.Username, token.CompanyCode, token.Value, expiresAt, token.Mock)
	if err != nil {
		return fmt.Errorf("inserting token row: %w", err)
	}
	return nil
}

func (m *TokenManager) purgeExpired() error {
	_, err := m.db.Exec(`DELETE FROM ssn_tokens
		WHERE is_mock = 0 AND expires_at IS NOT NULL AND expires_at < ?`, time.Now())
	if err != nil {
		return fmt.Errorf("purging expired tokens: %w", err)
	}
	return nil
}
