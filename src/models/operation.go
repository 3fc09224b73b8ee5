package models

import (
	"database/sql"
	"fmt"
)

// Weekly operation subtypes as the regulator codes them.
const (
	OpPurchase  = "C" // compra
	OpSale      = "V" // venta
	OpExchange  = "J" // canje
	OpFixedTerm = "P" // plazo fijo
)

// Operation is one row of a weekly presentation. The struct is a superset of
// every subtype's fields; which ones are meaningful depends on Subtype.
type Operation struct {
	ID             int64  `json:"id"`
	PresentationID int64  `json:"presentation_id"`
	Subtype        string `json:"subtype"`

	TipoEspecie      string  `json:"tipo_especie,omitempty"`
	CodigoEspecie    string  `json:"codigo_especie,omitempty"`
	CantEspecies     float64 `json:"cant_especies,omitempty"`
	CodigoAfectacion string  `json:"codigo_afectacion,omitempty"`
	TipoValuacion    string  `json:"tipo_valuacion,omitempty"`

	FechaMovimiento  string `json:"fecha_movimiento,omitempty"`  // ISO yyyy-mm-dd
	FechaLiquidacion string `json:"fecha_liquidacion,omitempty"` // ISO yyyy-mm-dd

	PrecioCompra float64 `json:"precio_compra,omitempty"`
	PrecioVenta  float64 `json:"precio_venta,omitempty"`

	// Pass-through valuation, only meaningful for sales of TP/ON species
	// valued technically.
	FechaPaseVT  string  `json:"fecha_pase_vt,omitempty"` // ISO yyyy-mm-dd
	PrecioPaseVT float64 `json:"precio_pase_vt,omitempty"`

	// Exchange (canje) counterpart.
	CodigoEspecieCanje string  `json:"codigo_especie_canje,omitempty"`
	CantEspeciesCanje  float64 `json:"cant_especies_canje,omitempty"`

	// Fixed-term deposit fields.
	CodigoBanco       string  `json:"codigo_banco,omitempty"`
	CDF               string  `json:"cdf,omitempty"`
	FechaConstitucion string  `json:"fecha_constitucion,omitempty"`
	FechaVencimiento  string  `json:"fecha_vencimiento,omitempty"`
	Moneda            string  `json:"moneda,omitempty"`
	ValorNominal      float64 `json:"valor_nominal,omitempty"`
	Tasa              float64 `json:"tasa,omitempty"`
}

// Identifying reports whether the row carries enough identity to be a real
// record at all. Rows where every identifying field is empty are silently
// discarded by ingestion.
func (o *Operation) Identifying() bool {
	switch o.Subtype {
	case OpFixedTerm:
		return o.CodigoBanco != "" || o.CDF != "" || o.ValorNominal != 0
	default:
		return o.CodigoEspecie != "" || o.CantEspecies != 0
	}
}

// MissingRequired returns the names of required fields that are empty after
// normalization. A non-empty result rejects the row.
func (o *Operation) MissingRequired() []string {
	var missing []string
	require := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}
	switch o.Subtype {
	case OpPurchase:
		require("codigo_especie", o.CodigoEspecie)
		require("fecha_movimiento", o.FechaMovimiento)
		require("fecha_liquidacion", o.FechaLiquidacion)
		if o.CantEspecies == 0 {
			missing = append(missing, "cant_especies")
		}
		if o.PrecioCompra == 0 {
			missing = append(missing, "precio_compra")
		}
	case OpSale:
		require("codigo_especie", o.CodigoEspecie)
		require("fecha_movimiento", o.FechaMovimiento)
		require("fecha_liquidacion", o.FechaLiquidacion)
		if o.CantEspecies == 0 {
			missing = append(missing, "cant_especies")
		}
		if o.PrecioVenta == 0 {
			missing = append(missing, "precio_venta")
		}
	case OpExchange:
		require("codigo_especie", o.CodigoEspecie)
		require("codigo_especie_canje", o.CodigoEspecieCanje)
		require("fecha_movimiento", o.FechaMovimiento)
		if o.CantEspecies == 0 {
			missing = append(missing, "cant_especies")
		}
	case OpFixedTerm:
		require("codigo_banco", o.CodigoBanco)
		require("cdf", o.CDF)
		require("fecha_constitucion", o.FechaConstitucion)
		require("fecha_vencimiento", o.FechaVencimiento)
		if o.ValorNominal == 0 {
			missing = append(missing, "valor_nominal")
		}
	}
	return missing
}

// ReplaceOperations discards every operation of a presentation and inserts the
// given batch inside the supplied transaction. Re-saving a draft always
// replaces its rows wholesale.
func ReplaceOperations(tx *sql.Tx, presentationID int64, ops []Operation) error {
	if _, err := tx.Exec(`DELETE FROM operations WHERE presentation_id = ?`, presentationID); err != nil {
		return fmt.Errorf("deleting old operations of presentation %d: %w", presentationID, err)
	}
	stmt, err := tx.Prepare(`INSERT INTO operations
		(presentation_id, subtype, tipo_especie, codigo_especie, cant_especies, codigo_afectacion,
		 tipo_valuacion, fecha_movimiento, fecha_liquidacion, precio_compra, precio_venta,
		 fecha_pase_vt, precio_pase_vt, codigo_especie_canje, cant_especies_canje,
		 codigo_banco, cdf, fecha_constitucion, fecha_vencimiento, moneda, valor_nominal, tasa)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing operation insert: %w", err)
	}
	defer stmt.Close()
	for i := range ops {
		o := &ops[i]
		_, err := stmt.Exec(presentationID, o.Subtype, o.TipoEspecie, o.CodigoEspecie, o.CantEspecies,
			o.CodigoAfectacion, o.TipoValuacion, o.FechaMovimiento, o.FechaLiquidacion,
			o.PrecioCompra, o.PrecioVenta, o.FechaPaseVT, o.PrecioPaseVT,
			o.CodigoEspecieCanje, o.CantEspeciesCanje, o.CodigoBanco, o.CDF,
			o.FechaConstitucion, o.FechaVencimiento, o.Moneda, o.ValorNominal, o.Tasa)
		if err != nil {
			return fmt.Errorf("inserting operation (especie %s): %w", o.CodigoEspecie, err)
		}
	}
	return nil
}

// FetchOperations returns the operations of a presentation in insert order.
func FetchOperations(db *sql.DB, presentationID int64) ([]Operation, error) {
	rows, err := db.Query(`SELECT id, presentation_id, subtype, tipo_especie, codigo_especie,
		cant_especies, codigo_afectacion, tipo_valuacion, fecha_movimiento, fecha_liquidacion,
		precio_compra, precio_venta, fecha_pase_vt, precio_pase_vt, codigo_especie_canje,
		cant_especies_canje, codigo_banco, cdf, fecha_constitucion, fecha_vencimiento,
		moneda, valor_nominal, tasa
		FROM operations WHERE presentation_id = ? ORDER BY id ASC`, presentationID)
	if err != nil {
		return nil, fmt.Errorf("querying operations of presentation %d: %w", presentationID, err)
	}
	defer rows.Close()

	var out []Operation
	for rows.Next() {
		var o Operation
		var tipoEspecie, codigoEspecie, codigoAfectacion, tipoValuacion sql.NullString
		var fechaMov, fechaLiq, fechaPase, especieCanje sql.NullString
		var banco, cdf, fechaCons, fechaVenc, moneda sql.NullString
		var cantEspecies, precioCompra, precioVenta, precioPase, cantCanje, valorNominal, tasa sql.NullFloat64
		err := rows.Scan(&o.ID, &o.PresentationID, &o.Subtype, &tipoEspecie, &codigoEspecie,
			&cantEspecies, &codigoAfectacion, &tipoValuacion, &fechaMov, &fechaLiq,
			&precioCompra, &precioVenta, &fechaPase, &precioPase, &especieCanje,
			&cantCanje, &banco, &cdf, &fechaCons, &fechaVenc, &moneda, &valorNominal, &tasa)
		if err != nil {
			return nil, fmt.Errorf("scanning operation row: %w", err)
		}
		o.TipoEspecie = tipoEspecie.String
		o.CodigoEspecie = codigoEspecie.String
		o.CantEspecies = cantEspecies.Float64
		o.CodigoAfectacion = codigoAfectacion.String
		o.TipoValuacion = tipoValuacion.String
		o.FechaMovimiento = fechaMov.String
		o.FechaLiquidacion = fechaLiq.String
		o.PrecioCompra = precioCompra.Float64
		o.PrecioVenta = precioVenta.Float64
		o.FechaPaseVT = fechaPase.String
		o.PrecioPaseVT = precioPase.Float64
		o.CodigoEspecieCanje = especieCanje.String
		o.CantEspeciesCanje = cantCanje.Float64
		o.CodigoBanco = banco.String
		o.CDF = cdf.String
		o.FechaConstitucion = fechaCons.String
		o.FechaVencimiento = fechaVenc.String
		o.Moneda = moneda.String
		o.ValorNominal = valorNominal.Float64
		o.Tasa = tasa.Float64
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operation rows: %w", err)
	}
	return out, nil
}
