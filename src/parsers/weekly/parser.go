// backend/src/parsers/weekly/parser.go
package weekly

import (
	"fmt"
	"io"
	"strings"

	"github.com/username/ssnreport/backend/src/logger"
	"github.com/username/ssnreport/backend/src/models"
	"github.com/username/ssnreport/backend/src/normalizer"
	"github.com/xuri/excelize/v2"
)

// The weekly workbook carries one tab per operation subtype. Rows 1-2 are
// title and column headers; data starts at row 3.
const headerRows = 2

var tabSubtypes = map[string]string{
	"Compras":      models.OpPurchase,
	"Ventas":       models.OpSale,
	"Canjes":       models.OpExchange,
	"Plazos Fijos": models.OpFixedTerm,
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse reads the weekly operations workbook. Rows whose identifying fields
// are all empty are discarded silently; rows missing required fields are
// rejected but never abort the batch.
func (p *Parser) Parse(file io.Reader) ([]models.Operation, []models.RowError, error) {
	workbook, err := excelize.OpenReader(file)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open weekly workbook: %w", err)
	}
	defer workbook.Close()

	var ops []models.Operation
	var rejections []models.RowError
	tabsFound := 0

	for _, sheet := range workbook.GetSheetList() {
		subtype, recognized := tabSubtypes[strings.TrimSpace(sheet)]
		if !recognized {
			continue
		}
		tabsFound++

		rows, err := workbook.GetRows(sheet)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
		}

		for i := headerRows; i < len(rows); i++ {
			rowNum := i + 1
			op, rowErr := parseOperationRow(subtype, rows[i])
			if rowErr != "" {
				rejections = append(rejections, models.RowError{Sheet: sheet, Row: rowNum, Reason: rowErr})
				continue
			}
			if op == nil {
				continue // all identifying fields empty
			}
			ops = append(ops, *op)
		}
	}

	if tabsFound == 0 {
		return nil, nil, fmt.Errorf("workbook has none of the expected tabs (Compras, Ventas, Canjes, Plazos Fijos)")
	}

	logger.L.Info("Weekly workbook parsed", "operations", len(ops), "rejections", len(rejections))
	return ops, rejections, nil
}

// cell returns a normalized cell value, tolerating the ragged rows GetRows
// produces.
func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return normalizer.CleanCell(row[idx])
}

// parseOperationRow normalizes one data row. It returns (nil, "") for a row
// to discard and a non-empty reason for a row to reject.
func parseOperationRow(subtype string, row []string) (*models.Operation, string) {
	op := models.Operation{Subtype: subtype}

	if subtype == models.OpFixedTerm {
		return parseFixedTermRow(row)
	}

	op.TipoEspecie = strings.ToUpper(cell(row, 0))
	op.CodigoEspecie = strings.ToUpper(cell(row, 1))

	var err error
	if op.CantEspecies, err = normalizer.ParseDecimal(cell(row, 2)); err != nil {
		return nil, fmt.Sprintf("cant_especies: %v", err)
	}
	op.CodigoAfectacion = cell(row, 3)
	op.TipoValuacion = strings.ToUpper(cell(row, 4))
	if op.FechaMovimiento, err = normalizer.ParseDate(cell(row, 5)); err != nil {
		return nil, fmt.Sprintf("fecha_movimiento: %v", err)
	}

	switch subtype {
	case models.OpPurchase:
		if op.PrecioCompra, err = normalizer.ParseDecimal(cell(row, 6)); err != nil {
			return nil, fmt.Sprintf("precio_compra: %v", err)
		}
		if op.FechaLiquidacion, err = normalizer.ParseDate(cell(row, 7)); err != nil {
			return nil, fmt.Sprintf("fecha_liquidacion: %v", err)
		}
	case models.OpSale:
		if op.PrecioVenta, err = normalizer.ParseDecimal(cell(row, 6)); err != nil {
			return nil, fmt.Sprintf("precio_venta: %v", err)
		}
		if op.FechaLiquidacion, err = normalizer.ParseDate(cell(row, 7)); err != nil {
			return nil, fmt.Sprintf("fecha_liquidacion: %v", err)
		}
		if op.FechaPaseVT, err = normalizer.ParseDate(cell(row, 8)); err != nil {
			return nil, fmt.Sprintf("fecha_pase_vt: %v", err)
		}
		if op.PrecioPaseVT, err = normalizer.ParseDecimal(cell(row, 9)); err != nil {
			return nil, fmt.Sprintf("precio_pase_vt: %v", err)
		}
	case models.OpExchange:
		if op.FechaLiquidacion, err = normalizer.ParseDate(cell(row, 6)); err != nil {
			return nil, fmt.Sprintf("fecha_liquidacion: %v", err)
		}
		op.CodigoEspecieCanje = strings.ToUpper(cell(row, 7))
		if op.CantEspeciesCanje, err = normalizer.ParseDecimal(cell(row, 8)); err != nil {
			return nil, fmt.Sprintf("cant_especies_canje: %v", err)
		}
	}

	if !op.Identifying() {
		return nil, ""
	}
	if missing := op.MissingRequired(); len(missing) > 0 {
		return nil, fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return &op, ""
}

// parseFixedTermRow handles the Plazos Fijos tab, whose columns differ
// entirely from the species-based tabs.
func parseFixedTermRow(row []string) (*models.Operation, string) {
	op := models.Operation{Subtype: models.OpFixedTerm}

	op.CodigoBanco = cell(row, 0)
	op.CDF = cell(row, 1)
	op.CodigoAfectacion = cell(row, 2)

	var err error
	if op.FechaConstitucion, err = normalizer.ParseDate(cell(row, 3)); err != nil {
		return nil, fmt.Sprintf("fecha_constitucion: %v", err)
	}
	if op.FechaVencimiento, err = normalizer.ParseDate(cell(row, 4)); err != nil {
		return nil, fmt.Sprintf("fecha_vencimiento: %v", err)
	}
	op.Moneda = strings.ToUpper(cell(row, 5))
	if op.ValorNominal, err = normalizer.ParseDecimal(cell(row, 6)); err != nil {
		return nil, fmt.Sprintf("valor_nominal: %v", err)
	}
	if op.Tasa, err = normalizer.ParseDecimal(cell(row, 7)); err != nil {
		return nil, fmt.Sprintf("tasa: %v", err)
	}

	if !op.Identifying() {
		return nil, ""
	}
	if missing := op.MissingRequired(); len(missing) > 0 {
		return nil, fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return &op, ""
}
