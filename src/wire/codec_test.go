package wire

import (
	"encoding/json"
	"testing"

	"github.com/username/ssnreport/backend/src/models"
)

func TestWireDateRoundTrip(t *testing.T) {
	tests := []struct {
		iso  string
		wire string
	}{
		{"2025-07-15", "15072025"},
		{"2025-01-02", "02012025"},
		{"2024-12-31", "31122024"},
	}
	for _, tt := range tests {
		if got := FormatWireDate(tt.iso); got != tt.wire {
			t.Errorf("FormatWireDate(%q) = %q, want %q", tt.iso, got, tt.wire)
		}
		if got := ParseWireDate(tt.wire); got != tt.iso {
			t.Errorf("ParseWireDate(%q) = %q, want %q", tt.wire, got, tt.iso)
		}
	}

	if got := FormatWireDate(""); got != "" {
		t.Errorf("FormatWireDate(\"\") = %q, want empty", got)
	}
	if got := FormatWireDate("garbage"); got != "" {
		t.Errorf("FormatWireDate on garbage = %q, want empty", got)
	}
	if got := ParseWireDate("99999999"); got != "" {
		t.Errorf("ParseWireDate on garbage = %q, want empty", got)
	}
}

// saleFields marshals one sale operation through the codec and returns the
// resulting JSON object.
func saleFields(t *testing.T, op models.Operation) map[string]any {
	t.Helper()
	wireOp, err := operationToWire(&op)
	if err != nil {
		t.Fatalf("operationToWire: %v", err)
	}
	raw, err := json.Marshal(wireOp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return fields
}

func TestSalePassThroughApplies(t *testing.T) {
	op := models.Operation{
		Subtype:         models.OpSale,
		TipoEspecie:     "TP",
		CodigoEspecie:   "AL30",
		CantEspecies:    100,
		TipoValuacion:   "T",
		FechaMovimiento: "2025-07-10",
		PrecioVenta:     98.5,
		FechaPaseVT:     "2025-07-15",
		PrecioPaseVT:    97.25,
	}
	fields := saleFields(t, op)

	if got := fields["fechaPaseVT"]; got != "15072025" {
		t.Errorf("fechaPaseVT = %v, want 15072025", got)
	}
	if got := fields["precioPaseVT"]; got != 97.25 {
		t.Errorf("precioPaseVT = %v, want 97.25", got)
	}
}

func TestSalePassThroughSuppressed(t *testing.T) {
	// Any one failing condition collapses both fields to literal empty
	// strings. They must still be present in the JSON.
	base := models.Operation{
		Subtype:         models.OpSale,
		TipoEspecie:     "TP",
		CodigoEspecie:   "AL30",
		CantEspecies:    100,
		TipoValuacion:   "T",
		FechaMovimiento: "2025-07-10",
		PrecioVenta:     98.5,
		FechaPaseVT:     "2025-07-15",
		PrecioPaseVT:    97.25,
	}

	variants := map[string]func(*models.Operation){
		"market valuation":  func(o *models.Operation) { o.TipoValuacion = "V" },
		"non TP/ON species": func(o *models.Operation) { o.TipoEspecie = "AC" },
		"no pass date":      func(o *models.Operation) { o.FechaPaseVT = "" },
	}
	for name, mutate := range variants {
		op := base
		mutate(&op)
		fields := saleFields(t, op)

		fecha, present := fields["fechaPaseVT"]
		if !present || fecha != "" {
			t.Errorf("%s: fechaPaseVT = %v (present=%v), want literal empty string", name, fecha, present)
		}
		precio, present := fields["precioPaseVT"]
		if !present || precio != "" {
			t.Errorf("%s: precioPaseVT = %v (present=%v), want literal empty string", name, precio, present)
		}
	}
}

func TestWeeklyPayloadShape(t *testing.T) {
	codec := NewCodec("0777")
	p := &models.Presentation{Cronograma: "2025-29", DeliveryKind: models.KindWeekly}
	ops := []models.Operation{
		{Subtype: models.OpPurchase, TipoEspecie: "AC", CodigoEspecie: "PAMP", CantEspecies: 50,
			FechaMovimiento: "2025-07-14", FechaLiquidacion: "2025-07-16", PrecioCompra: 1200},
		{Subtype: models.OpFixedTerm, CodigoBanco: "00007", CDF: "123456", Moneda: "ARS",
			FechaConstitucion: "2025-07-01", FechaVencimiento: "2025-08-01", ValorNominal: 1000000, Tasa: 0.35},
	}
	payload, err := codec.Weekly(p, ops)
	if err != nil {
		t.Fatalf("Weekly: %v", err)
	}

	if payload.CodigoCompania != "0777" {
		t.Errorf("codigoCompania = %q", payload.CodigoCompania)
	}
	if payload.TipoEntrega != "Semanal" {
		t.Errorf("tipoEntrega = %q", payload.TipoEntrega)
	}
	if payload.Cronograma != "2025-29" {
		t.Errorf("cronograma = %q", payload.Cronograma)
	}
	if len(payload.Operaciones) != 2 {
		t.Fatalf("operaciones count = %d", len(payload.Operaciones))
	}

	purchase, ok := payload.Operaciones[0].(purchaseWire)
	if !ok {
		t.Fatalf("first operation is %T, want purchaseWire", payload.Operaciones[0])
	}
	if purchase.TipoOperacion != models.OpPurchase || purchase.FechaMovimiento != "14072025" {
		t.Errorf("unexpected purchase wire: %+v", purchase)
	}

	fixedTerm, ok := payload.Operaciones[1].(fixedTermOpWire)
	if !ok {
		t.Fatalf("second operation is %T, want fixedTermOpWire", payload.Operaciones[1])
	}
	if fixedTerm.TipoOperacion != models.OpFixedTerm || fixedTerm.ValorNominal != 1000000 {
		t.Errorf("unexpected fixed-term wire: %+v", fixedTerm)
	}
}

func TestMonthlyPayloadShape(t *testing.T) {
	codec := NewCodec("0777")
	p := &models.Presentation{Cronograma: "2025-07", DeliveryKind: models.KindMonthly}
	stocks := []models.Stock{
		{Subtype: models.StockInvestment, TipoEspecie: "TP", CodigoEspecie: "AL30",
			CantidadDevengado: 1000, ConCotizacion: true, EnCustodia: false, ValorContable: 68000},
		{Subtype: models.StockDeferredCheck, CodigoSGR: "SGR01", CodigoCheque: "999",
			FechaEmision: "2025-06-01", FechaVencimiento: "2025-09-01", Moneda: "ARS", ValorAdquisicion: 500000},
	}
	payload, err := codec.Monthly(p, stocks)
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}

	if payload.TipoEntrega != "Mensual" {
		t.Errorf("tipoEntrega = %q", payload.TipoEntrega)
	}
	inv, ok := payload.Stocks[0].(investmentWire)
	if !ok {
		t.Fatalf("first stock is %T, want investmentWire", payload.Stocks[0])
	}
	if inv.ConCotizacion != "1" || inv.EnCustodia != "0" {
		t.Errorf("boolean rendering: conCotizacion=%q enCustodia=%q", inv.ConCotizacion, inv.EnCustodia)
	}
	check, ok := payload.Stocks[1].(deferredCheckWire)
	if !ok {
		t.Fatalf("second stock is %T, want deferredCheckWire", payload.Stocks[1])
	}
	if check.FechaEmision != "01062025" {
		t.Errorf("fechaEmision = %q", check.FechaEmision)
	}
}

func TestUnknownSubtypesRejected(t *testing.T) {
	if _, err := operationToWire(&models.Operation{Subtype: "Z"}); err == nil {
		t.Error("expected error for unknown operation subtype")
	}
	if _, err := stockToWire(&models.Stock{Subtype: "Z"}); err == nil {
		t.Error("expected error for unknown stock subtype")
	}
}
