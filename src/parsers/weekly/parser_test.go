package weekly

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/username/ssnreport/backend/src/logger"
	"github.com/username/ssnreport/backend/src/models"
	"github.com/xuri/excelize/v2"
)

func init() {
	logger.InitLogger("error")
}

// buildWorkbook creates an in-memory xlsx with the given sheets. Each sheet's
// rows start at row 3; rows 1-2 are filled with header placeholders.
func buildWorkbook(t *testing.T, sheets map[string][][]any) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, dataRows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		require.NoError(t, f.SetCellValue(name, "A1", "Planilla"))
		require.NoError(t, f.SetCellValue(name, "A2", "Encabezados"))
		for i, row := range dataRows {
			cellRef, err := excelize.CoordinatesToCellName(1, i+3)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cellRef, &row))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func TestParseWeeklyWorkbook(t *testing.T) {
	workbook := buildWorkbook(t, map[string][][]any{
		"Compras": {
			{"AC", "PAMP", "50", "1", "V", "14/07/2025", "1.234,56", "16/07/2025"},
			{"TP", "AL30", "1000", "1", "T", "2025-07-14", "68,50", "2025-07-16"},
			// Missing codigo_especie: rejected, not discarded.
			{"AC", "", "10", "1", "V", "14/07/2025", "100", "16/07/2025"},
			// Fully blank row: silently discarded.
			{"", "", "", "", "", "", "", ""},
		},
		"Ventas": {
			{"TP", "GD35", "500", "1", "T", "15/07/2025", "55,25", "17/07/2025", "15/07/2025", "54,00"},
		},
	})

	parser := NewParser()
	ops, rejections, err := parser.Parse(workbook)
	require.NoError(t, err)

	require.Len(t, ops, 3)
	require.Len(t, rejections, 1)
	require.Equal(t, "Compras", rejections[0].Sheet)
	require.Contains(t, rejections[0].Reason, "codigo_especie")

	byCode := map[string]models.Operation{}
	for _, op := range ops {
		byCode[op.CodigoEspecie] = op
	}

	pamp := byCode["PAMP"]
	require.Equal(t, models.OpPurchase, pamp.Subtype)
	require.Equal(t, 1234.56, pamp.PrecioCompra)
	require.Equal(t, "2025-07-14", pamp.FechaMovimiento)
	require.Equal(t, "2025-07-16", pamp.FechaLiquidacion)

	gd35 := byCode["GD35"]
	require.Equal(t, models.OpSale, gd35.Subtype)
	require.Equal(t, 55.25, gd35.PrecioVenta)
	require.Equal(t, "2025-07-15", gd35.FechaPaseVT)
	require.Equal(t, 54.00, gd35.PrecioPaseVT)
}

func TestParseWeeklyFixedTermTab(t *testing.T) {
	workbook := buildWorkbook(t, map[string][][]any{
		"Plazos Fijos": {
			{"00007", "CDF-001", "1", "01/07/2025", "01/08/2025", "ARS", "1.000.000,00", "0,35"},
			// Missing cdf: rejected.
			{"00011", "", "1", "01/07/2025", "01/08/2025", "ARS", "500000", "0,30"},
		},
	})

	parser := NewParser()
	ops, rejections, err := parser.Parse(workbook)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.Len(t, rejections, 1)

	pf := ops[0]
	require.Equal(t, models.OpFixedTerm, pf.Subtype)
	require.Equal(t, "00007", pf.CodigoBanco)
	require.Equal(t, "2025-07-01", pf.FechaConstitucion)
	require.Equal(t, float64(1000000), pf.ValorNominal)
	require.Equal(t, 0.35, pf.Tasa)
}

func TestParseWeeklyBlankSentinels(t *testing.T) {
	workbook := buildWorkbook(t, map[string][][]any{
		"Compras": {
			// Sentinel cells count as empty, so this row has no identity.
			{"VACIO", "N/A", "-", "", "S/D", "", "", ""},
		},
	})

	parser := NewParser()
	ops, rejections, err := parser.Parse(workbook)
	require.NoError(t, err)
	require.Empty(t, ops)
	require.Empty(t, rejections)
}

func TestParseWeeklyNoRecognizedTabs(t *testing.T) {
	workbook := buildWorkbook(t, map[string][][]any{
		"Hoja1": {
			{"AC", "PAMP", "50"},
		},
	})

	parser := NewParser()
	_, _, err := parser.Parse(workbook)
	require.Error(t, err)
}

func TestParseWeeklyInvalidDateRejected(t *testing.T) {
	workbook := buildWorkbook(t, map[string][][]any{
		"Compras": {
			{"AC", "GGAL", "50", "1", "V", "not-a-date", "100", "16/07/2025"},
		},
	})

	parser := NewParser()
	ops, rejections, err := parser.Parse(workbook)
	require.NoError(t, err)
	require.Empty(t, ops)
	require.Len(t, rejections, 1)
	require.Contains(t, rejections[0].Reason, "fecha_movimiento")
}
