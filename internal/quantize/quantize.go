// Package quantize floors prices and amounts to exchange increments using
// exact decimal arithmetic.
package quantize

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Quantizer floors values to exchange tick/step increments. It is a pure
// computation with no dependencies; a zero step means "no constraint".
type Quantizer struct{}

// NewQuantizer creates a Quantizer.
func NewQuantizer() *Quantizer {
	return &Quantizer{}
}

// FloorToStep floors value to the nearest multiple of step at or below it.
// A zero step returns value unchanged. Returns an error only for a negative
// step, which indicates a corrupt rule set.
func (q *Quantizer) FloorToStep(value, step decimal.Decimal) (decimal.Decimal, error) {
	if step.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative step %s", step)
	}
	return FloorToStep(value, step), nil
}

// FloorToStep is the package-level form for callers that have already
// validated their rule set. step <= 0 returns value unchanged.
func FloorToStep(value, step decimal.Decimal) decimal.Decimal {
	if step.Sign() <= 0 {
		return value
	}
	// value - (value mod step) is exact in decimal arithmetic; binary
	// floating point would perturb step-boundary values.
	rem := value.Mod(step)
	if rem.IsNegative() {
		rem = rem.Add(step)
	}
	return value.Sub(rem)
}
