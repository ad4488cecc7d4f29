package compute

import (
	"testing"
	"time"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ      Type
		expected string
	}{
		{BusyWait, "busy-wait"},
		{Series, "series"},
		{Primes, "primes"},
		{Matrix, "matrix"},
		{Light, "light"},
		{Type(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.expected {
			t.Errorf("Type(%d).String() = %s, want %s", tt.typ, got, tt.expected)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Type
		wantErr  bool
	}{
		{"busy-wait", BusyWait, false},
		{"busywait", BusyWait, false},
		{"series", Series, false},
		{"primes", Primes, false},
		{"matrix", Matrix, false},
		{"light", Light, false},
		{"  Matrix  ", Matrix, false},
		{"PRIMES", Primes, false},
		{"fibonacci", BusyWait, true},
		{"", BusyWait, true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Parse(%q) expected error, got nil", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestParseStringRoundTrip(t *testing.T) {
	for _, typ := range Types() {
		got, err := Parse(typ.String())
		if err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", typ.String(), err)
			continue
		}
		if got != typ {
			t.Errorf("Parse(%q) = %v, want %v", typ.String(), got, typ)
		}
	}
}

func TestTypeValid(t *testing.T) {
	for _, typ := range Types() {
		if !typ.Valid() {
			t.Errorf("Type %v should be valid", typ)
		}
	}
	for _, typ := range []Type{Type(-1), Type(5), Type(99)} {
		if typ.Valid() {
			t.Errorf("Type %d should be invalid", typ)
		}
	}
}

func TestTypeWireValues(t *testing.T) {
	// The numeric values form the external enum and must not drift.
	tests := []struct {
		typ   Type
		value int
	}{
		{BusyWait, 0},
		{Series, 1},
		{Primes, 2},
		{Matrix, 3},
		{Light, 4},
	}

	for _, tt := range tests {
		if int(tt.typ) != tt.value {
			t.Errorf("%v = %d, want %d", tt.typ, int(tt.typ), tt.value)
		}
	}
}

func TestRunForDuration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timing test in short mode")
	}

	const target = 20 * time.Millisecond
	// Generous upper bound: one batch of overrun plus scheduler noise.
	const slack = 50 * time.Millisecond

	for _, typ := range Types() {
		start := time.Now()
		typ.RunFor(target)
		elapsed := time.Since(start)

		if elapsed < target {
			t.Errorf("%v: RunFor returned after %v, want at least %v", typ, elapsed, target)
		}
		if elapsed > target+slack {
			t.Errorf("%v: RunFor took %v, want at most %v", typ, elapsed, target+slack)
		}
	}
}

func TestRunForZeroDuration(t *testing.T) {
	for _, typ := range Types() {
		start := time.Now()
		typ.RunFor(0)
		typ.RunFor(-time.Millisecond)
		if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
			t.Errorf("%v: RunFor(0) took %v, expected immediate return", typ, elapsed)
		}
	}
}

func TestIsPrime(t *testing.T) {
	primes := []int64{2, 3, 5, 7, 11, 13, 997, 7919}
	composites := []int64{0, 1, 4, 9, 15, 1000, 7917}

	for _, n := range primes {
		if !isPrime(n) {
			t.Errorf("isPrime(%d) = false, want true", n)
		}
	}
	for _, n := range composites {
		if isPrime(n) {
			t.Errorf("isPrime(%d) = true, want false", n)
		}
	}
}
