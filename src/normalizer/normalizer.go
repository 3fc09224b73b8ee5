// backend/src/normalizer/normalizer.go
package normalizer

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const ISODateFormat = "2006-01-02"

// Sheet serial dates count days from this epoch. Using 1899-12-30 absorbs the
// historical off-by-one of the 1900 epoch so serial 45853 lands on 2025-07-15.
var sheetEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// Sentinel cell values that operators type to mean "no value". Compared
// case-insensitively after trimming.
var blankSentinels = map[string]bool{
	"-":         true,
	"--":        true,
	"N/A":       true,
	"NA":        true,
	"NO APLICA": true,
	"NULL":      true,
	"S/D":       true,
	"SIN DATO":  true,
	"VACIO":     true,
	"VACÍO":     true,
	"BLANK":     true,
}

// CleanCell trims a raw cell value and coerces blank sentinels to the empty
// string.
func CleanCell(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if blankSentinels[strings.ToUpper(trimmed)] {
		return ""
	}
	return trimmed
}

// ParseDecimal converts a cell to a float, accepting comma decimal separators
// with optional dot thousands separators ("1.234,56" -> 1234.56). An empty or
// sentinel cell yields 0 with no error.
func ParseDecimal(raw string) (float64, error) {
	cleaned := CleanCell(raw)
	if cleaned == "" {
		return 0, nil
	}
	if strings.Contains(cleaned, ",") {
		// Comma is the decimal separator; any dots are thousands separators.
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid decimal value %q: %w", raw, err)
	}
	return value, nil
}

// ParseBool coerces boolean-like cell tokens. Anything not recognized as true
// is false.
func ParseBool(raw string) bool {
	switch strings.ToUpper(CleanCell(raw)) {
	case "1", "TRUE", "YES", "Y", "SI", "SÍ", "S", "X", "VERDADERO":
		return true
	}
	return false
}

// ParseDate normalizes a date cell to ISO yyyy-mm-dd. Three input forms are
// recognized: already-ISO text, day/month/year text, and a numeric sheet
// serial. An empty or sentinel cell yields "" with no error.
func ParseDate(raw string) (string, error) {
	cleaned := CleanCell(raw)
	if cleaned == "" {
		return "", nil
	}

	if t, err := time.Parse(ISODateFormat, cleaned); err == nil {
		return t.Format(ISODateFormat), nil
	}

	for _, layout := range []string{"02/01/2006", "02-01-2006", "2/1/2006", "2-1-2006"} {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t.Format(ISODateFormat), nil
		}
	}

	if serial, err := strconv.ParseFloat(cleaned, 64); err == nil {
		t := sheetEpoch.AddDate(0, 0, int(serial))
		if t.Year() < 1900 || t.Year() > 2100 {
			return "", fmt.Errorf("serial date %q resolves to year %d, outside [1900,2100]", raw, t.Year())
		}
		return t.Format(ISODateFormat), nil
	}

	return "", fmt.Errorf("unrecognized date value %q", raw)
}
