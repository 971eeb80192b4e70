package quantize

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestFloorToStep(t *testing.T) {
	tests := []struct {
		name  string
		value string
		step  string
		want  string
	}{
		{"price tick", "0.012345", "0.0001", "0.0123"},
		{"two decimals", "123.456", "0.01", "123.45"},
		{"fine step", "0.0379874", "0.000001", "0.037987"},
		{"already aligned", "123.45", "0.01", "123.45"},
		{"integer step", "132.9", "1", "132"},
		{"coarse step", "7.9", "0.25", "7.75"},
		{"zero step passthrough", "0.012345", "0", "0.012345"},
		{"zero value", "0", "0.01", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FloorToStep(d(tt.value), d(tt.step))
			if !got.Equal(d(tt.want)) {
				t.Errorf("FloorToStep(%s, %s) = %s, want %s", tt.value, tt.step, got, tt.want)
			}
		})
	}
}

func TestFloorToStep_FloorLaw(t *testing.T) {
	values := []string{"0.0379874", "5000.37", "0.00000199", "1", "99999.999999"}
	steps := []string{"0.000001", "0.01", "0.25", "1", "0.5"}

	for _, v := range values {
		for _, s := range steps {
			value, step := d(v), d(s)
			got := FloorToStep(value, step)

			if got.GreaterThan(value) {
				t.Errorf("FloorToStep(%s, %s) = %s exceeds value", v, s, got)
			}
			if !got.Mod(step).IsZero() {
				t.Errorf("FloorToStep(%s, %s) = %s is not a multiple of step", v, s, got)
			}
			// Idempotent: flooring twice changes nothing.
			if again := FloorToStep(got, step); !again.Equal(got) {
				t.Errorf("FloorToStep not idempotent: %s -> %s -> %s", v, got, again)
			}
		}
	}
}

func TestQuantizer_NegativeStep(t *testing.T) {
	q := NewQuantizer()
	if _, err := q.FloorToStep(d("1"), d("-0.01")); err == nil {
		t.Error("expected error for negative step")
	}
}

func TestQuantizer_ZeroStep(t *testing.T) {
	q := NewQuantizer()
	got, err := q.FloorToStep(d("0.012345"), decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(d("0.012345")) {
		t.Errorf("zero step should pass value through, got %s", got)
	}
}
