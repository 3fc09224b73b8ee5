package models

import (
	"database/sql"
	"fmt"
)

// Monthly stock subtypes as the regulator codes them.
const (
	StockInvestment    = "I" // inversión
	StockFixedTerm     = "P" // plazo fijo
	StockDeferredCheck = "C" // cheque de pago diferido
)

// Stock is one row of a monthly presentation.
type Stock struct {
	ID             int64  `json:"id"`
	PresentationID int64  `json:"presentation_id"`
	Subtype        string `json:"subtype"`

	TipoEspecie        string  `json:"tipo_especie,omitempty"`
	CodigoEspecie      string  `json:"codigo_especie,omitempty"`
	CantidadDevengado  float64 `json:"cantidad_devengado,omitempty"`
	CantidadPercibido  float64 `json:"cantidad_percibido,omitempty"`
	CodigoAfectacion   string  `json:"codigo_afectacion,omitempty"`
	TipoValuacion      string  `json:"tipo_valuacion,omitempty"`
	ConCotizacion      bool    `json:"con_cotizacion,omitempty"`
	EnCustodia         bool    `json:"en_custodia,omitempty"`
	ValorContable      float64 `json:"valor_contable,omitempty"`
	PrevisionDesvalorizacion float64 `json:"prevision_desvalorizacion,omitempty"`

	// Fixed-term deposit fields.
	CodigoBanco          string  `json:"codigo_banco,omitempty"`
	CDF                  string  `json:"cdf,omitempty"`
	FechaConstitucion    string  `json:"fecha_constitucion,omitempty"`
	FechaVencimiento     string  `json:"fecha_vencimiento,omitempty"`
	Moneda               string  `json:"moneda,omitempty"`
	ValorNominalOrigen   float64 `json:"valor_nominal_origen,omitempty"`
	ValorNominalNacional float64 `json:"valor_nominal_nacional,omitempty"`
	Tasa                 float64 `json:"tasa,omitempty"`

	// Deferred check fields.
	CodigoSGR        string  `json:"codigo_sgr,omitempty"`
	CodigoCheque     string  `json:"codigo_cheque,omitempty"`
	FechaEmision     string  `json:"fecha_emision,omitempty"`
	FechaAdquisicion string  `json:"fecha_adquisicion,omitempty"`
	ValorAdquisicion float64 `json:"valor_adquisicion,omitempty"`

	// Soft validation warning, e.g. a species code missing from the
	// reference catalog. Never rejects the row.
	CatalogWarning string `json:"catalog_warning,omitempty"`
}

// Identifying reports whether the row carries enough identity to be a real
// record; rows with every identifying field empty are silently discarded.
func (s *Stock) Identifying() bool {
	switch s.Subtype {
	case StockFixedTerm:
		return s.CodigoBanco != "" || s.CDF != "" || s.ValorNominalOrigen != 0
	case StockDeferredCheck:
		return s.CodigoCheque != "" || s.CodigoSGR != "" || s.ValorAdquisicion != 0
	default:
		return s.CodigoEspecie != "" || s.ValorContable != 0
	}
}

// MissingRequired returns the names of required fields that are empty after
// normalization. A non-empty result rejects the row.
func (s *Stock) MissingRequired() []string {
	var missing []string
	require := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}
	switch s.Subtype {
	case StockInvestment:
		require("codigo_especie", s.CodigoEspecie)
		require("tipo_especie", s.TipoEspecie)
		if s.ValorContable == 0 {
			missing = append(missing, "valor_contable")
		}
	case StockFixedTerm:
		require("codigo_banco", s.CodigoBanco)
		require("cdf", s.CDF)
		require("fecha_constitucion", s.FechaConstitucion)
		require("fecha_vencimiento", s.FechaVencimiento)
		if s.ValorNominalOrigen == 0 {
			missing = append(missing, "valor_nominal_origen")
		}
	case StockDeferredCheck:
		require("codigo_cheque", s.CodigoCheque)
		require("fecha_emision", s.FechaEmision)
		require("fecha_vencimiento", s.FechaVencimiento)
		if s.ValorAdquisicion == 0 {
			missing = append(missing, "valor_adquisicion")
		}
	}
	return missing
}

// ReplaceStocks discards every stock row of a presentation and inserts the
// given batch inside the supplied transaction.
func ReplaceStocks(tx *sql.Tx, presentationID int64, stocks []Stock) error {
	if _, err := tx.Exec(`DELETE FROM stocks WHERE presentation_id = ?`, presentationID); err != nil {
		return fmt.Errorf("deleting old stocks of presentation %d: %w", presentationID, err)
	}
	stmt, err := tx.Prepare(`INSERT INTO stocks
		(presentation_id, subtype, tipo_especie, codigo_especie, cantidad_devengado,
		 cantidad_percibido, codigo_afectacion, tipo_valuacion, con_cotizacion, en_custodia,
		 valor_contable, prevision_desvalorizacion, codigo_banco, cdf, fecha_constitucion,
		 fecha_vencimiento, moneda, valor_nominal_origen, valor_nominal_nacional, tasa,
		 codigo_sgr, codigo_cheque, fecha_emision, fecha_adquisicion, valor_adquisicion,
		 catalog_warning)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing stock insert: %w", err)
	}
	defer stmt.Close()
	for i := range stocks {
		s := &stocks[i]
		_, err := stmt.Exec(presentationID, s.Subtype, s.TipoEspecie, s.CodigoEspecie,
			s.CantidadDevengado, s.CantidadPercibido, s.CodigoAfectacion, s.TipoValuacion,
			s.ConCotizacion, s.EnCustodia, s.ValorContable, s.PrevisionDesvalorizacion,
			s.CodigoBanco, s.CDF, s.FechaConstitucion, s.FechaVencimiento, s.Moneda,
			s.ValorNominalOrigen, s.ValorNominalNacional, s.Tasa, s.CodigoSGR, s.CodigoCheque,
			s.FechaEmision, s.FechaAdquisicion, s.ValorAdquisicion, s.CatalogWarning)
		if err != nil {
			return fmt.Errorf("inserting stock (especie %s): %w", s.CodigoEspecie, err)
		}
	}
	return nil
}

// FetchStocks returns the stock rows of a presentation in insert order.
func FetchStocks(db *sql.DB, presentationID int64) ([]Stock, error) {
	rows, err := db.Query(`SELECT id, presentation_id, subtype, tipo_especie, codigo_especie,
		cantidad_devengado, cantidad_percibido, codigo_afectacion, tipo_valuacion, con_cotizacion,
		en_custodia, valor_contable, prevision_desvalorizacion, codigo_banco, cdf,
		fecha_constitucion, fecha_vencimiento, moneda, valor_nominal_origen,
		valor_nominal_nacional, tasa, codigo_sgr, codigo_cheque, fecha_emision,
		fecha_adquisicion, valor_adquisicion, catalog_warning
		FROM stocks WHERE presentation_id = ? ORDER BY id ASC`, presentationID)
	if err != nil {
		return nil, fmt.Errorf("querying stocks of presentation %d: %w", presentationID, err)
	}
	defer rows.Close()

	var out []Stock
	for rows.Next() {
		var s Stock
		var tipoEspecie, codigoEspecie, codigoAfectacion, tipoValuacion sql.NullString
		var banco, cdf, fechaCons, fechaVenc, moneda, sgr, cheque, fechaEmi, fechaAdq, warning sql.NullString
		var devengado, percibido, valorContable, prevision, vnOrigen, vnNacional, tasa, valorAdq sql.NullFloat64
		err := rows.Scan(&s.ID, &s.PresentationID, &s.Subtype, &tipoEspecie, &codigoEspecie,
			&devengado, &percibido, &codigoAfectacion, &tipoValuacion, &s.ConCotizacion,
			&s.EnCustodia, &valorContable, &prevision, &banco, &cdf,
			&fechaCons, &fechaVenc, &moneda, &vnOrigen, &vnNacional, &tasa,
			&sgr, &cheque, &fechaEmi, &fechaAdq, &valorAdq, &warning)
		if err != nil {
			return nil, fmt.Errorf("scanning stock row: %w", err)
		}
		s.TipoEspecie = tipoEspecie.String
		s.CodigoEspecie = codigoEspecie.String
		s.CantidadDevengado = devengado.Float64
		s.CantidadPercibido = percibido.Float64
		s.CodigoAfectacion = codigoAfectacion.String
		s.TipoValuacion = tipoValuacion.String
		s.ValorContable = valorContable.Float64
		s.PrevisionDesvalorizacion = prevision.Float64
		s.CodigoBanco = banco.String
		s.CDF = cdf.String
		s.FechaConstitucion = fechaCons.String
		s.FechaVencimiento = fechaVenc.String
		s.Moneda = moneda.String
		s.ValorNominalOrigen = vnOrigen.Float64
		s.ValorNominalNacional = vnNacional.Float64
		s.Tasa = tasa.Float64
		s.CodigoSGR = sgr.String
		s.CodigoCheque = cheque.String
		s.FechaEmision = fechaEmi.String
		s.FechaAdquisicion = fechaAdq.String
		s.ValorAdquisicion = valorAdq.Float64
		s.CatalogWarning = warning.String
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stock rows: %w", err)
	}
	return out, nil
}
