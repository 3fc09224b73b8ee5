// backend/src/parsers/monthly/parser.go
package monthly

import (
	"fmt"
	"io"
	"strings"

	"github.com/username/ssnreport/backend/src/catalog"
	"github.com/username/ssnreport/backend/src/logger"
	"github.com/username/ssnreport/backend/src/models"
	"github.com/username/ssnreport/backend/src/normalizer"
	"github.com/xuri/excelize/v2"
)

// The monthly workbook carries a single "Stocks" tab with a subtype column
// ("I", "P" or "C") and subtype-specific columns further right. Rows 1-2 are
// title and column headers; data starts at row 3.
const (
	sheetName  = "Stocks"
	headerRows = 2
)

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse reads the monthly stock workbook. Species codes of investment rows
// are cross-checked against the reference catalog; a miss is attached as a
// soft warning, never a rejection.
func (p *Parser) Parse(file io.Reader) ([]models.Stock, []models.RowError, error) {
	workbook, err := excelize.OpenReader(file)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open monthly workbook: %w", err)
	}
	defer workbook.Close()

	rows, err := workbook.GetRows(sheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}

	var stocks []models.Stock
	var rejections []models.RowError

	for i := headerRows; i < len(rows); i++ {
		rowNum := i + 1
		stock, rowErr := parseStockRow(rows[i])
		if rowErr != "" {
			rejections = append(rejections, models.RowError{Sheet: sheetName, Row: rowNum, Reason: rowErr})
			continue
		}
		if stock == nil {
			continue // all identifying fields empty
		}
		stocks = append(stocks, *stock)
	}

	logger.L.Info("Monthly workbook parsed", "stocks", len(stocks), "rejections", len(rejections))
	return stocks, rejections, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return normalizer.CleanCell(row[idx])
}

// Column layout of the Stocks tab. Shared columns first, then the
// subtype-specific blocks.
const (
	colSubtype = iota
	colTipoEspecie
	colCodigoEspecie
	colCantidadDevengado
	colCantidadPercibido
	colCodigoAfectacion
	colTipoValuacion
	colConCotizacion
	colEnCustodia
	colValorContable
	colPrevision
	colCodigoBanco
	colCDF
	colFechaConstitucion
	colFechaVencimiento
	colMoneda
	colValorNominalOrigen
	colValorNominalNacional
	colTasa
	colCodigoSGR
	colCodigoCheque
	colFechaEmision
	colFechaAdquisicion
	colValorAdquisicion
)

func parseStockRow(row []string) (*models.Stock, string) {
	subtype := strings.ToUpper(cell(row, colSubtype))
	switch subtype {
	case models.StockInvestment, models.StockFixedTerm, models.StockDeferredCheck:
	case "":
		return nil, "" // nothing typed on this row at all
	default:
		return nil, fmt.Sprintf("unknown stock subtype %q", subtype)
	}

	s := models.Stock{Subtype: subtype}
	s.TipoEspecie = strings.ToUpper(cell(row, colTipoEspecie))
	s.CodigoEspecie = strings.ToUpper(cell(row, colCodigoEspecie))
	s.CodigoAfectacion = cell(row, colCodigoAfectacion)
	s.TipoValuacion = strings.ToUpper(cell(row, colTipoValuacion))
	s.ConCotizacion = normalizer.ParseBool(cell(row, colConCotizacion))
	s.EnCustodia = normalizer.ParseBool(cell(row, colEnCustodia))
	s.Moneda = strings.ToUpper(cell(row, colMoneda))
	s.CodigoBanco = cell(row, colCodigoBanco)
	s.CDF = cell(row, colCDF)
	s.CodigoSGR = cell(row, colCodigoSGR)
	s.CodigoCheque = cell(row, colCodigoCheque)

	var err error
	type decimalField struct {
		name string
		col  int
		dst  *float64
	}
	for _, f := range []decimalField{
		{"cantidad_devengado", colCantidadDevengado, &s.CantidadDevengado},
		{"cantidad_percibido", colCantidadPercibido, &s.CantidadPercibido},
		{"valor_contable", colValorContable, &s.ValorContable},
		{"prevision_desvalorizacion", colPrevision, &s.PrevisionDesvalorizacion},
		{"valor_nominal_origen", colValorNominalOrigen, &s.ValorNominalOrigen},
		{"valor_nominal_nacional", colValorNominalNacional, &s.ValorNominalNacional},
		{"tasa", colTasa, &s.Tasa},
		{"valor_adquisicion", colValorAdquisicion, &s.ValorAdquisicion},
	} {
		if *f.dst, err = normalizer.ParseDecimal(cell(row, f.col)); err != nil {
			return nil, fmt.Sprintf("%s: %v", f.name, err)
		}
	}

	type dateField struct {
		name string
		col  int
		dst  *string
	}
	for _, f := range []dateField{
		{"fecha_constitucion", colFechaConstitucion, &s.FechaConstitucion},
		{"fecha_vencimiento", colFechaVencimiento, &s.FechaVencimiento},
		{"fecha_emision", colFechaEmision, &s.FechaEmision},
		{"fecha_adquisicion", colFechaAdquisicion, &s.FechaAdquisicion},
	} {
		if *f.dst, err = normalizer.ParseDate(cell(row, f.col)); err != nil {
			return nil, fmt.Sprintf("%s: %v", f.name, err)
		}
	}

	if !s.Identifying() {
		return nil, ""
	}
	if missing := s.MissingRequired(); len(missing) > 0 {
		return nil, fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", "))
	}

	if s.Subtype == models.StockInvestment && catalog.Loaded() {
		if _, found := catalog.LookupSpecies(s.CodigoEspecie); !found {
			s.CatalogWarning = fmt.Sprintf("especie %s no encontrada en el catálogo de referencia", s.CodigoEspecie)
			logger.L.Warn("Species code missing from reference catalog", "codigoEspecie", s.CodigoEspecie)
		}
	}

	return &s, ""
}
