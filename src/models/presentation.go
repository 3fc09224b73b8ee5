package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Presentation states. A presentation walks EMPTY -> LOADED -> SUBMITTED ->
// RECTIFICATION_REQUESTED -> RECTIFICATION_GRANTED | REJECTED. A granted
// rectification re-enters the flow through a fresh version starting at LOADED.
const (
	StateEmpty                  = "EMPTY"
	StateLoaded                 = "LOADED"
	StateSubmitted              = "SUBMITTED"
	StateRectificationRequested = "RECTIFICATION_REQUESTED"
	StateRectificationGranted   = "RECTIFICATION_GRANTED"
	StateRejected               = "REJECTED"
)

// Delivery kinds.
const (
	KindWeekly  = "semanal"
	KindMonthly = "mensual"
)

var ErrInvalidTransition = errors.New("invalid presentation state transition")

type Presentation struct {
	ID           int64  `json:"id"`
	CompanyCode  string `json:"company_code"`
	Cronograma   string `json:"cronograma"`
	DeliveryKind string `json:"delivery_kind"`
	Version      int    `json:"version"`
	State        string `json:"state"`

	ExternalRef  string `json:"external_ref,omitempty"`
	ResponseBody string `json:"response_body,omitempty"`

	SourceFilePath string `json:"source_file_path,omitempty"`
	WireFilePath   string `json:"wire_file_path,omitempty"`

	ValidationErrors string `json:"validation_errors,omitempty"`
	Notes            string `json:"notes,omitempty"`

	PresentedAt               *time.Time `json:"presented_at,omitempty"`
	ConfirmedAt               *time.Time `json:"confirmed_at,omitempty"`
	RectificationRequestedAt  *time.Time `json:"rectification_requested_at,omitempty"`
	RectificationResolvedAt   *time.Time `json:"rectification_resolved_at,omitempty"`
	CreatedAt                 time.Time  `json:"created_at"`
	UpdatedAt                 time.Time  `json:"updated_at"`
}

// IsBlocking reports whether this presentation blocks its siblings: while a
// version of an identity is SUBMITTED or awaiting rectification, no other
// version of the same (company, cronograma, kind) may be loaded or created.
func (p *Presentation) IsBlocking() bool {
	return p.State == StateSubmitted || p.State == StateRectificationRequested
}

// IsTerminal reports whether the presentation can never change state again.
func (p *Presentation) IsTerminal() bool {
	return p.State == StateRejected
}

func (p *Presentation) CanUpload() bool {
	return p.State == StateEmpty || p.State == StateLoaded
}

func (p *Presentation) CanSubmit() bool {
	return p.State == StateLoaded
}

func (p *Presentation) CanRequestRectification() bool {
	return p.State == StateSubmitted
}

// CanOpenNewVersion reports whether a fresh version may be derived from this
// presentation. Only a granted rectification re-opens the identity.
func (p *Presentation) CanOpenNewVersion() bool {
	return p.State == StateRectificationGranted
}

// Transition validates and applies a state change in memory. Persistence is
// the caller's responsibility so that failed remote calls never leave a
// half-written presentation behind.
func (p *Presentation) Transition(target string) error {
	allowed := map[string][]string{
		StateEmpty:                  {StateLoaded},
		StateLoaded:                 {StateLoaded, StateSubmitted},
		StateSubmitted:              {StateRectificationRequested},
		StateRectificationRequested: {StateRectificationGranted, StateRejected},
	}
	for _, t := range allowed[p.State] {
		if t == target {
			p.State = target
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.State, target)
}

// Insert persists a new presentation and fills in its generated id.
func (p *Presentation) Insert(db *sql.DB) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	res, err := db.Exec(`INSERT INTO presentations
		(company_code, cronograma, delivery_kind, version, state, external_ref, response_body,
		 source_file_path, wire_file_path, validation_errors, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.CompanyCode, p.Cronograma, p.DeliveryKind, p.Version, p.State, p.ExternalRef, p.ResponseBody,
		p.SourceFilePath, p.WireFilePath, p.ValidationErrors, p.Notes, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting presentation %s/%s/%s v%d: %w", p.CompanyCode, p.Cronograma, p.DeliveryKind, p.Version, err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading presentation insert id: %w", err)
	}
	return nil
}

// Update persists every mutable column of the presentation.
func (p *Presentation) Update(db Execer) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := db.Exec(`UPDATE presentations SET
		state = ?, external_ref = ?, response_body = ?, source_file_path = ?, wire_file_path = ?,
		validation_errors = ?, notes = ?, presented_at = ?, confirmed_at = ?,
		rectification_requested_at = ?, rectification_resolved_at = ?, updated_at = ?
		WHERE id = ?`,
		p.State, p.ExternalRef, p.ResponseBody, p.SourceFilePath, p.WireFilePath,
		p.ValidationErrors, p.Notes, p.PresentedAt, p.ConfirmedAt,
		p.RectificationRequestedAt, p.RectificationResolvedAt, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("updating presentation %d: %w", p.ID, err)
	}
	return nil
}

// Execer is satisfied by both *sql.DB and *sql.Tx so lifecycle updates can run
// inside a transaction when rows are replaced alongside.
type Execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

const presentationColumns = `id, company_code, cronograma, delivery_kind, version, state,
	external_ref, response_body, source_file_path, wire_file_path, validation_errors, notes,
	presented_at, confirmed_at, rectification_requested_at, rectification_resolved_at,
	created_at, updated_at`

func scanPresentation(row interface{ Scan(...any) error }) (*Presentation, error) {
	var p Presentation
	var externalRef, responseBody, sourcePath, wirePath, valErrs, notes sql.NullString
	var presentedAt, confirmedAt, rectReqAt, rectResAt sql.NullTime
	err := row.Scan(&p.ID, &p.CompanyCode, &p.Cronograma, &p.DeliveryKind, &p.Version, &p.State,
		&externalRef, &responseBody, &sourcePath, &wirePath, &valErrs, &notes,
		&presentedAt, &confirmedAt, &rectReqAt, &rectResAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ExternalRef = externalRef.String
	p.ResponseBody = responseBody.String
	p.SourceFilePath = sourcePath.String
	p.WireFilePath = wirePath.String
	p.ValidationErrors = valErrs.String
	p.Notes = notes.String
	if presentedAt.Valid {
		p.PresentedAt = &presentedAt.Time
	}
	if confirmedAt.Valid {
		p.ConfirmedAt = &confirmedAt.Time
	}
	if rectReqAt.Valid {
		p.RectificationRequestedAt = &rectReqAt.Time
	}
	if rectResAt.Valid {
		p.RectificationResolvedAt = &rectResAt.Time
	}
	return &p, nil
}

// GetPresentationByID fetches a single presentation.
func GetPresentationByID(db *sql.DB, id int64) (*Presentation, error) {
	row := db.QueryRow(`SELECT `+presentationColumns+` FROM presentations WHERE id = ?`, id)
	p, err := scanPresentation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("fetching presentation %d: %w", id, err)
	}
	return p, nil
}

// ListPresentations returns every presentation for a company, newest version
// of each period first.
func ListPresentations(db *sql.DB, companyCode string) ([]*Presentation, error) {
	rows, err := db.Query(`SELECT `+presentationColumns+` FROM presentations
		WHERE company_code = ? ORDER BY cronograma DESC, delivery_kind ASC, version DESC`, companyCode)
	if err != nil {
		return nil, fmt.Errorf("listing presentations for company %s: %w", companyCode, err)
	}
	defer rows.Close()
	return collectPresentations(rows)
}

// ListPresentationsByState returns every presentation currently in the given
// state, oldest first so the poller drains the backlog in order.
func ListPresentationsByState(db *sql.DB, state string) ([]*Presentation, error) {
	rows, err := db.Query(`SELECT `+presentationColumns+` FROM presentations
		WHERE state = ? ORDER BY id ASC`, state)
	if err != nil {
		return nil, fmt.Errorf("listing presentations in state %s: %w", state, err)
	}
	defer rows.Close()
	return collectPresentations(rows)
}

func collectPresentations(rows *sql.Rows) ([]*Presentation, error) {
	var out []*Presentation
	for rows.Next() {
		p, err := scanPresentation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning presentation row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating presentation rows: %w", err)
	}
	return out, nil
}

// NextVersion returns the next version number for an identity. Versions are
// monotonically increasing per (company, cronograma, kind).
func NextVersion(db *sql.DB, companyCode, cronograma, deliveryKind string) (int, error) {
	var maxVersion sql.NullInt64
	err := db.QueryRow(`SELECT MAX(version) FROM presentations
		WHERE company_code = ? AND cronograma = ? AND delivery_kind = ?`,
		companyCode, cronograma, deliveryKind).Scan(&maxVersion)
	if err != nil {
		return 0, fmt.Errorf("querying max version for %s/%s/%s: %w", companyCode, cronograma, deliveryKind, err)
	}
	return int(maxVersion.Int64) + 1, nil
}

// BlockingSibling returns the sibling version that is currently SUBMITTED or
// RECTIFICATION_REQUESTED for the same identity, excluding the given id, or
// nil when the identity is free.
func BlockingSibling(db *sql.DB, companyCode, cronograma, deliveryKind string, excludeID int64) (*Presentation, error) {
	row := db.QueryRow(`SELECT `+presentationColumns+` FROM presentations
		WHERE company_code = ? AND cronograma = ? AND delivery_kind = ?
		AND state IN (?, ?) AND id != ? LIMIT 1`,
		companyCode, cronograma, deliveryKind, StateSubmitted, StateRectificationRequested, excludeID)
	p, err := scanPresentation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("checking blocking sibling for %s/%s/%s: %w", companyCode, cronograma, deliveryKind, err)
	}
	return p, nil
}
