// backend/src/ssn/mock.go
package ssn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/username/ssnreport/backend/src/logger"
)

// mockResponder fabricates plausible SSN replies for environments without
// network access to the regulator. Behavior is keyed off the request path and
// method, matching the shapes the real API returns.
type mockResponder struct {
	delay time.Duration
}

func newMockResponder() *mockResponder {
	return &mockResponder{delay: 150 * time.Millisecond}
}

func (m *mockResponder) respond(ctx context.Context, method, path string) (*Response, error) {
	// Keep a touch of latency so callers exercise their timeout plumbing.
	select {
	case <-time.After(m.delay):
	case <-ctx.Done():
		return nil, &TransportError{Op: fmt.Sprintf("%s %s", method, path), Err: ctx.Err()}
	}

	entrega := "Semanal"
	if strings.Contains(strings.ToLower(path), "mensual") {
		entrega = "Mensual"
	}

	var estado, detalle string
	switch {
	case strings.Contains(path, "confirmar"):
		estado = "CONFIRMADA"
		detalle = fmt.Sprintf("Entrega %s confirmada", entrega)
	case method == http.MethodGet:
		// The status query always reports the rectification as granted so
		// offline runs can drive the full lifecycle to completion.
		estado = "RECTIFICADA"
		detalle = fmt.Sprintf("Entrega %s rectificada", entrega)
	case method == http.MethodPut:
		estado = "RECTIFICACION_PENDIENTE"
		detalle = fmt.Sprintf("Solicitud de rectificación de entrega %s registrada", entrega)
	default:
		estado = "PRESENTADA"
		detalle = fmt.Sprintf("Entrega %s recibida", entrega)
	}

	resp := &Response{
		ID:      uuid.NewString(),
		Estado:  estado,
		Detalle: detalle,
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encoding mock response: %w", err)
	}
	resp.Raw = raw

	logger.L.Debug("SSN mock response", "method", method, "path", path, "estado", estado)
	return resp, nil
}
