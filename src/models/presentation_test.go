package models

import (
	"errors"
	"testing"
)

func TestTransitionAllowedPaths(t *testing.T) {
	steps := []struct {
		from, to string
	}{
		{StateEmpty, StateLoaded},
		{StateLoaded, StateLoaded}, // re-upload of a draft
		{StateLoaded, StateSubmitted},
		{StateSubmitted, StateRectificationRequested},
		{StateRectificationRequested, StateRectificationGranted},
		{StateRectificationRequested, StateRejected},
	}
	for _, s := range steps {
		p := &Presentation{State: s.from}
		if err := p.Transition(s.to); err != nil {
			t.Errorf("Transition(%s -> %s) unexpectedly failed: %v", s.from, s.to, err)
		}
		if p.State != s.to {
			t.Errorf("Transition(%s -> %s) left state %s", s.from, s.to, p.State)
		}
	}
}

func TestTransitionRejectsInvalidPaths(t *testing.T) {
	steps := []struct {
		from, to string
	}{
		{StateEmpty, StateSubmitted},
		{StateEmpty, StateRectificationRequested},
		{StateLoaded, StateRectificationGranted},
		{StateSubmitted, StateLoaded},
		{StateSubmitted, StateRejected},
		{StateRectificationGranted, StateLoaded},
		{StateRejected, StateLoaded},
		{StateRejected, StateSubmitted},
	}
	for _, s := range steps {
		p := &Presentation{State: s.from}
		err := p.Transition(s.to)
		if err == nil {
			t.Errorf("Transition(%s -> %s) should have failed", s.from, s.to)
			continue
		}
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Transition(%s -> %s) error = %v, want ErrInvalidTransition", s.from, s.to, err)
		}
		if p.State != s.from {
			t.Errorf("failed transition mutated state: %s -> %s", s.from, p.State)
		}
	}
}

func TestStatePredicates(t *testing.T) {
	for _, state := range []string{StateSubmitted, StateRectificationRequested} {
		if !(&Presentation{State: state}).IsBlocking() {
			t.Errorf("%s should block siblings", state)
		}
	}
	for _, state := range []string{StateEmpty, StateLoaded, StateRectificationGranted, StateRejected} {
		if (&Presentation{State: state}).IsBlocking() {
			t.Errorf("%s should not block siblings", state)
		}
	}

	if !(&Presentation{State: StateRejected}).IsTerminal() {
		t.Error("REJECTED should be terminal")
	}
	if (&Presentation{State: StateRectificationGranted}).IsTerminal() {
		t.Error("RECTIFICATION_GRANTED is not terminal; it re-opens through a new version")
	}

	if !(&Presentation{State: StateEmpty}).CanUpload() || !(&Presentation{State: StateLoaded}).CanUpload() {
		t.Error("EMPTY and LOADED must accept uploads")
	}
	if (&Presentation{State: StateSubmitted}).CanUpload() {
		t.Error("SUBMITTED must not accept uploads")
	}
	if !(&Presentation{State: StateRectificationGranted}).CanOpenNewVersion() {
		t.Error("only a granted rectification opens a new version")
	}
	if (&Presentation{State: StateSubmitted}).CanOpenNewVersion() {
		t.Error("SUBMITTED must not open a new version")
	}
}

func TestOperationMissingRequired(t *testing.T) {
	op := Operation{
		Subtype:       OpPurchase,
		CodigoEspecie: "PAMP",
		CantEspecies:  10,
	}
	missing := op.MissingRequired()
	want := map[string]bool{"fecha_movimiento": true, "fecha_liquidacion": true, "precio_compra": true}
	if len(missing) != len(want) {
		t.Fatalf("missing = %v, want exactly %v", missing, want)
	}
	for _, m := range missing {
		if !want[m] {
			t.Errorf("unexpected missing field %q", m)
		}
	}

	op.FechaMovimiento = "2025-07-14"
	op.FechaLiquidacion = "2025-07-16"
	op.PrecioCompra = 1200
	if missing := op.MissingRequired(); len(missing) != 0 {
		t.Errorf("complete purchase still missing %v", missing)
	}
}

func TestOperationIdentifying(t *testing.T) {
	if (&Operation{Subtype: OpPurchase}).Identifying() {
		t.Error("empty purchase row should not be identifying")
	}
	if !(&Operation{Subtype: OpPurchase, CodigoEspecie: "AL30"}).Identifying() {
		t.Error("purchase with species code is identifying")
	}
	if !(&Operation{Subtype: OpFixedTerm, CDF: "123"}).Identifying() {
		t.Error("fixed term with certificate number is identifying")
	}
	if (&Operation{Subtype: OpFixedTerm}).Identifying() {
		t.Error("empty fixed-term row should not be identifying")
	}
}
