// backend/src/wire/codec.go
package wire

import (
	"fmt"
	"time"

	"github.com/username/ssnreport/backend/src/models"
	"github.com/username/ssnreport/backend/src/normalizer"
)

// WireDateFormat is the regulator's DDMMYYYY date representation.
const WireDateFormat = "02012006"

// Codec builds the regulator's JSON payloads from stored presentations. The
// company code is fixed at construction so the pipeline never reaches for
// ambient configuration.
type Codec struct {
	companyCode string
}

func NewCodec(companyCode string) *Codec {
	return &Codec{companyCode: companyCode}
}

// FormatWireDate converts an ISO date to DDMMYYYY. Unparsable input yields
// the empty string, which the regulator accepts as "no date".
func FormatWireDate(isoDate string) string {
	if isoDate == "" {
		return ""
	}
	t, err := time.Parse(normalizer.ISODateFormat, isoDate)
	if err != nil {
		return ""
	}
	return t.Format(WireDateFormat)
}

// ParseWireDate converts a DDMMYYYY wire date back to ISO. Unparsable input
// yields the empty string.
func ParseWireDate(wireDate string) string {
	if wireDate == "" {
		return ""
	}
	t, err := time.Parse(WireDateFormat, wireDate)
	if err != nil {
		return ""
	}
	return t.Format(normalizer.ISODateFormat)
}

type WeeklyPayload struct {
	CodigoCompania string `json:"codigoCompania"`
	Cronograma     string `json:"cronograma"`
	TipoEntrega    string `json:"tipoEntrega"`
	Operaciones    []any  `json:"operaciones"`
}

type MonthlyPayload struct {
	CodigoCompania string `json:"codigoCompania"`
	Cronograma     string `json:"cronograma"`
	TipoEntrega    string `json:"tipoEntrega"`
	Stocks         []any  `json:"stocks"`
}

// One wire struct per operation subtype. Field names and order are the
// regulator's contract and must not change.

type purchaseWire struct {
	TipoOperacion    string  `json:"tipoOperacion"`
	TipoEspecie      string  `json:"tipoEspecie"`
	CodigoEspecie    string  `json:"codigoEspecie"`
	CantEspecies     float64 `json:"cantEspecies"`
	CodigoAfectacion string  `json:"codigoAfectacion"`
	TipoValuacion    string  `json:"tipoValuacion"`
	FechaMovimiento  string  `json:"fechaMovimiento"`
	PrecioCompra     float64 `json:"precioCompra"`
	FechaLiquidacion string  `json:"fechaLiquidacion"`
}

type saleWire struct {
	TipoOperacion    string  `json:"tipoOperacion"`
	TipoEspecie      string  `json:"tipoEspecie"`
	CodigoEspecie    string  `json:"codigoEspecie"`
	CantEspecies     float64 `json:"cantEspecies"`
	CodigoAfectacion string  `json:"codigoAfectacion"`
	TipoValuacion    string  `json:"tipoValuacion"`
	FechaMovimiento  string  `json:"fechaMovimiento"`
	PrecioVenta      float64 `json:"precioVenta"`
	FechaLiquidacion string  `json:"fechaLiquidacion"`
	// The regulator expects these two present on every sale. They carry real
	// values only for TP/ON species under technical valuation; otherwise both
	// are literal empty strings, never omitted.
	FechaPaseVT  string `json:"fechaPaseVT"`
	PrecioPaseVT any    `json:"precioPaseVT"`
}

type exchangeWire struct {
	TipoOperacion      string  `json:"tipoOperacion"`
	TipoEspecie        string  `json:"tipoEspecie"`
	CodigoEspecie      string  `json:"codigoEspecie"`
	CantEspecies       float64 `json:"cantEspecies"`
	CodigoAfectacion   string  `json:"codigoAfectacion"`
	TipoValuacion      string  `json:"tipoValuacion"`
	FechaMovimiento    string  `json:"fechaMovimiento"`
	FechaLiquidacion   string  `json:"fechaLiquidacion"`
	CodigoEspecieCanje string  `json:"codigoEspecieCanje"`
	CantEspeciesCanje  float64 `json:"cantEspeciesCanje"`
}

type fixedTermOpWire struct {
	TipoOperacion     string  `json:"tipoOperacion"`
	CodigoBanco       string  `json:"codigoBanco"`
	CDF               string  `json:"cdf"`
	CodigoAfectacion  string  `json:"codigoAfectacion"`
	FechaConstitucion string  `json:"fechaConstitucion"`
	FechaVencimiento  string  `json:"fechaVencimiento"`
	Moneda            string  `json:"moneda"`
	ValorNominal      float64 `json:"valorNominal"`
	Tasa              float64 `json:"tasa"`
}

type investmentWire struct {
	Tipo                     string  `json:"tipo"`
	TipoEspecie              string  `json:"tipoEspecie"`
	CodigoEspecie            string  `json:"codigoEspecie"`
	CantidadDevengado        float64 `json:"cantidadDevengadoEspecies"`
	CantidadPercibido        float64 `json:"cantidadPercibidoEspecies"`
	CodigoAfectacion         string  `json:"codigoAfectacion"`
	TipoValuacion            string  `json:"tipoValuacion"`
	ConCotizacion            string  `json:"conCotizacion"`
	EnCustodia               string  `json:"enCustodia"`
	ValorContable            float64 `json:"valorContable"`
	PrevisionDesvalorizacion float64 `json:"previsionDesvalorizacion"`
}

type fixedTermStockWire struct {
	Tipo                 string  `json:"tipo"`
	CodigoBanco          string  `json:"codigoBanco"`
	CDF                  string  `json:"cdf"`
	CodigoAfectacion     string  `json:"codigoAfectacion"`
	FechaConstitucion    string  `json:"fechaConstitucion"`
	FechaVencimiento     string  `json:"fechaVencimiento"`
	Moneda               string  `json:"moneda"`
	ValorNominalOrigen   float64 `json:"valorNominalOrigen"`
	ValorNominalNacional float64 `json:"valorNominalNacional"`
	Tasa                 float64 `json:"tasa"`
}

type deferredCheckWire struct {
	Tipo             string  `json:"tipo"`
	CodigoSGR        string  `json:"codigoSgr"`
	CodigoCheque     string  `json:"codigoCheque"`
	FechaEmision     string  `json:"fechaEmision"`
	FechaVencimiento string  `json:"fechaVencimiento"`
	Moneda           string  `json:"moneda"`
	ValorAdquisicion float64 `json:"valorAdquisicion"`
	FechaAdquisicion string  `json:"fechaAdquisicion"`
}

// Weekly builds the submit payload for a weekly presentation.
func (c *Codec) Weekly(p *models.Presentation, ops []models.Operation) (*WeeklyPayload, error) {
	payload := &WeeklyPayload{
		CodigoCompania: c.companyCode,
		Cronograma:     p.Cronograma,
		TipoEntrega:    "Semanal",
		Operaciones:    make([]any, 0, len(ops)),
	}
	for i := range ops {
		wireOp, err := operationToWire(&ops[i])
		if err != nil {
			return nil, err
		}
		payload.Operaciones = append(payload.Operaciones, wireOp)
	}
	return payload, nil
}

// Monthly builds the submit payload for a monthly presentation.
func (c *Codec) Monthly(p *models.Presentation, stocks []models.Stock) (*MonthlyPayload, error) {
	payload := &MonthlyPayload{
		CodigoCompania: c.companyCode,
		Cronograma:     p.Cronograma,
		TipoEntrega:    "Mensual",
		Stocks:         make([]any, 0, len(stocks)),
	}
	for i := range stocks {
		wireStock, err := stockToWire(&stocks[i])
		if err != nil {
			return nil, err
		}
		payload.Stocks = append(payload.Stocks, wireStock)
	}
	return payload, nil
}

func operationToWire(o *models.Operation) (any, error) {
	switch o.Subtype {
	case models.OpPurchase:
		return purchaseWire{
			TipoOperacion:    models.OpPurchase,
			TipoEspecie:      o.TipoEspecie,
			CodigoEspecie:    o.CodigoEspecie,
			CantEspecies:     o.CantEspecies,
			CodigoAfectacion: o.CodigoAfectacion,
			TipoValuacion:    o.TipoValuacion,
			FechaMovimiento:  FormatWireDate(o.FechaMovimiento),
			PrecioCompra:     o.PrecioCompra,
			FechaLiquidacion: FormatWireDate(o.FechaLiquidacion),
		}, nil
	case models.OpSale:
		s := saleWire{
			TipoOperacion:    models.OpSale,
			TipoEspecie:      o.TipoEspecie,
			CodigoEspecie:    o.CodigoEspecie,
			CantEspecies:     o.CantEspecies,
			CodigoAfectacion: o.CodigoAfectacion,
			TipoValuacion:    o.TipoValuacion,
			FechaMovimiento:  FormatWireDate(o.FechaMovimiento),
			PrecioVenta:      o.PrecioVenta,
			FechaLiquidacion: FormatWireDate(o.FechaLiquidacion),
			FechaPaseVT:      "",
			PrecioPaseVT:     "",
		}
		if salePassThroughApplies(o) {
			s.FechaPaseVT = FormatWireDate(o.FechaPaseVT)
			s.PrecioPaseVT = o.PrecioPaseVT
		}
		return s, nil
	case models.OpExchange:
		return exchangeWire{
			TipoOperacion:      models.OpExchange,
			TipoEspecie:        o.TipoEspecie,
			CodigoEspecie:      o.CodigoEspecie,
			CantEspecies:       o.CantEspecies,
			CodigoAfectacion:   o.CodigoAfectacion,
			TipoValuacion:      o.TipoValuacion,
			FechaMovimiento:    FormatWireDate(o.FechaMovimiento),
			FechaLiquidacion:   FormatWireDate(o.FechaLiquidacion),
			CodigoEspecieCanje: o.CodigoEspecieCanje,
			CantEspeciesCanje:  o.CantEspeciesCanje,
		}, nil
	case models.OpFixedTerm:
		return fixedTermOpWire{
			TipoOperacion:     models.OpFixedTerm,
			CodigoBanco:       o.CodigoBanco,
			CDF:               o.CDF,
			CodigoAfectacion:  o.CodigoAfectacion,
			FechaConstitucion: FormatWireDate(o.FechaConstitucion),
			FechaVencimiento:  FormatWireDate(o.FechaVencimiento),
			Moneda:            o.Moneda,
			ValorNominal:      o.ValorNominal,
			Tasa:              o.Tasa,
		}, nil
	default:
		return nil, fmt.Errorf("unknown operation subtype %q", o.Subtype)
	}
}

// salePassThroughApplies gates the pass-through valuation fields: TP or ON
// species under technical valuation, with the date actually captured.
func salePassThroughApplies(o *models.Operation) bool {
	if o.TipoValuacion != "T" {
		return false
	}
	if o.TipoEspecie != "TP" && o.TipoEspecie != "ON" {
		return false
	}
	return o.FechaPaseVT != ""
}

func stockToWire(s *models.Stock) (any, error) {
	switch s.Subtype {
	case models.StockInvestment:
		return investmentWire{
			Tipo:                     models.StockInvestment,
			TipoEspecie:              s.TipoEspecie,
			CodigoEspecie:            s.CodigoEspecie,
			CantidadDevengado:        s.CantidadDevengado,
			CantidadPercibido:        s.CantidadPercibido,
			CodigoAfectacion:         s.CodigoAfectacion,
			TipoValuacion:            s.TipoValuacion,
			ConCotizacion:            wireBool(s.ConCotizacion),
			EnCustodia:               wireBool(s.EnCustodia),
			ValorContable:            s.ValorContable,
			PrevisionDesvalorizacion: s.PrevisionDesvalorizacion,
		}, nil
	case models.StockFixedTerm:
		return fixedTermStockWire{
			Tipo:                 models.StockFixedTerm,
			CodigoBanco:          s.CodigoBanco,
			CDF:                  s.CDF,
			CodigoAfectacion:     s.CodigoAfectacion,
			FechaConstitucion:    FormatWireDate(s.FechaConstitucion),
			FechaVencimiento:     FormatWireDate(s.FechaVencimiento),
			Moneda:               s.Moneda,
			ValorNominalOrigen:   s.ValorNominalOrigen,
			ValorNominalNacional: s.ValorNominalNacional,
			Tasa:                 s.Tasa,
		}, nil
	case models.StockDeferredCheck:
		return deferredCheckWire{
			Tipo:             models.StockDeferredCheck,
			CodigoSGR:        s.CodigoSGR,
			CodigoCheque:     s.CodigoCheque,
			FechaEmision:     FormatWireDate(s.FechaEmision),
			FechaVencimiento: FormatWireDate(s.FechaVencimiento),
			Moneda:           s.Moneda,
			ValorAdquisicion: s.ValorAdquisicion,
			FechaAdquisicion: FormatWireDate(s.FechaAdquisicion),
		}, nil
	default:
		return nil, fmt.Errorf("unknown stock subtype %q", s.Subtype)
	}
}

// wireBool renders booleans the way the regulator expects them on stocks.
func wireBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
