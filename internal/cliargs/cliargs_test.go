package cliargs

import "testing"

func TestStringReturnsArgumentVerbatim(t *testing.T) {
	a := &Args{usage: "in out", argv: []string{"input.bin", "output.bin"}}
	if got := a.String(0); got != "input.bin" {
		t.Errorf("String(0) = %q, want %q", got, "input.bin")
	}
}

func TestIntParsesDecimal(t *testing.T) {
	a := &Args{usage: "order", argv: []string{"3"}}
	if got := a.Int(0); got != 3 {
		t.Errorf("Int(0) = %d, want 3", got)
	}
}

func TestFloat32ParsesDecimalString(t *testing.T) {
	a := &Args{usage: "threshold", argv: []string{"0.75"}}
	if got := a.Float32(0); got != 0.75 {
		t.Errorf("Float32(0) = %g, want 0.75", got)
	}
}
