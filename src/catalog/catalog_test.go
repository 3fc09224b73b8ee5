package catalog

import (
	"testing"

	"github.com/username/ssnreport/backend/src/logger"
)

func init() {
	logger.InitLogger("error")
}

func TestLookupSpecies(t *testing.T) {
	SetForTesting([]SpeciesInfo{
		{Codigo: "AL30", TipoEspecie: "TP", Descripcion: "Bono 2030"},
		{Codigo: "pamp", TipoEspecie: "AC", Descripcion: "Pampa Energía"},
	})

	if !Loaded() {
		t.Fatal("catalog should report loaded")
	}

	info, ok := LookupSpecies("AL30")
	if !ok || info.TipoEspecie != "TP" {
		t.Errorf("LookupSpecies(AL30) = %+v, %v", info, ok)
	}

	// Lookups are case-insensitive and trim whitespace.
	if _, ok := LookupSpecies("  al30 "); !ok {
		t.Error("lowercase padded lookup should hit")
	}
	if _, ok := LookupSpecies("PAMP"); !ok {
		t.Error("entry stored lowercase should be found uppercase")
	}

	if _, ok := LookupSpecies("NOPE"); ok {
		t.Error("unknown code should miss")
	}
}
