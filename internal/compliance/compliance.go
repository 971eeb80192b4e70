// Package compliance quantizes order parameters and validates them against
// exchange market rules, repairing what it safely can and refusing the rest.
package compliance

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/quanvu/dipbot/internal/quantize"
	"github.com/quanvu/dipbot/internal/types"
)

// Violation tags a rule the raw input did not satisfy.
type Violation string

const (
	// Advisory: the input was not tick/step aligned and was floored.
	ViolationPriceAdjusted  Violation = "price_adjusted"
	ViolationAmountAdjusted Violation = "amount_adjusted"
	// Advisory: the amount was bumped up to clear the minimum notional.
	ViolationMinCostAutoFixed Violation = "min_cost_auto_fixed"

	// Critical: the order must not be submitted.
	ViolationInvalidPrice           Violation = "invalid_price"
	ViolationInvalidAmountQuantized Violation = "invalid_amount_after_quantize"
	ViolationMinCost                Violation = "min_cost_violation"
)

// Critical reports whether the violation blocks submission.
func (v Violation) Critical() bool {
	switch v {
	case ViolationInvalidPrice, ViolationInvalidAmountQuantized, ViolationMinCost:
		return true
	default:
		return false
	}
}

// Result holds the quantized order parameters plus every violation observed.
// If Valid() is true the (Price, Amount) pair satisfies tick size, step size
// and minimum notional simultaneously.
type Result struct {
	Price      decimal.Decimal
	Amount     decimal.Decimal
	Violations []Violation
	MinCostHit bool
	AutoFixed  bool
}

// Valid returns true iff no critical violation is present.
func (r Result) Valid() bool {
	for _, v := range r.Violations {
		if v.Critical() {
			return false
		}
	}
	return true
}

// Has reports whether the given violation was recorded.
func (r Result) Has(v Violation) bool {
	for _, got := range r.Violations {
		if got == v {
			return true
		}
	}
	return false
}

// Config holds validator tuning knobs.
type Config struct {
	// FeeBuffer inflates the minimum notional so fees cannot push a
	// just-barely-compliant order back under the exchange minimum.
	FeeBuffer decimal.Decimal
	// MaxBumpFactor bounds the min-notional auto-fix: the bumped amount may
	// not exceed the raw amount times this factor. Without the bound the
	// auto-fix could silently multiply an order far past its budget.
	MaxBumpFactor decimal.Decimal
}

// DefaultConfig returns the default validator configuration.
func DefaultConfig() Config {
	return Config{
		FeeBuffer:     decimal.RequireFromString("1.01"),
		MaxBumpFactor: decimal.NewFromInt(1000),
	}
}

// adjustEpsilon is the threshold below which a flooring change is considered
// representation noise rather than a real adjustment.
var adjustEpsilon = decimal.New(1, -12)

// Validator quantizes and validates order parameters.
type Validator struct {
	cfg    Config
	q      *quantize.Quantizer
	logger *slog.Logger
}

// NewValidator creates a validator.
func NewValidator(cfg Config, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FeeBuffer.Sign() <= 0 {
		cfg.FeeBuffer = DefaultConfig().FeeBuffer
	}
	if cfg.MaxBumpFactor.Sign() <= 0 {
		cfg.MaxBumpFactor = DefaultConfig().MaxBumpFactor
	}
	return &Validator{
		cfg:    cfg,
		q:      quantize.NewQuantizer(),
		logger: logger,
	}
}

// QuantizeAndValidate floors the raw price and amount to the symbol's
// increments, repairs a minimum-notional shortfall by bumping the amount when
// that is safe, and reports everything it did as typed violations.
func (v *Validator) QuantizeAndValidate(rawPrice, rawAmount decimal.Decimal, rules types.MarketRules) Result {
	price := quantize.FloorToStep(rawPrice, rules.PriceTick)
	amount := quantize.FloorToStep(rawAmount, rules.AmountStep)

	res := Result{Price: price, Amount: amount}

	// Audit tags for inputs that were not already compliant. Advisory only.
	if rawPrice.Sub(price).Abs().GreaterThan(adjustEpsilon) {
		res.Violations = append(res.Violations, ViolationPriceAdjusted)
	}
	if rawAmount.Sub(amount).Abs().GreaterThan(adjustEpsilon) {
		res.Violations = append(res.Violations, ViolationAmountAdjusted)
	}

	if price.Sign() <= 0 {
		res.Violations = append(res.Violations, ViolationInvalidPrice)
		return res
	}
	if amount.Sign() <= 0 {
		res.Violations = append(res.Violations, ViolationInvalidAmountQuantized)
		return res
	}

	if rules.MinNotional.Sign() <= 0 {
		return res
	}

	buffered := rules.MinNotional.Mul(v.cfg.FeeBuffer)
	notional := price.Mul(amount)
	if notional.GreaterThanOrEqual(buffered) {
		return res
	}

	// Auto-bump: the step-aligned amount closest to clearing the buffered
	// minimum. The fee buffer leaves headroom, so flooring lands below the
	// raw minimum only when the step is coarse relative to price; that case
	// is unfixable.
	needed := buffered.Div(price)
	bumped := quantize.FloorToStep(needed, rules.AmountStep)

	maxBump := rawAmount.Mul(v.cfg.MaxBumpFactor)
	if bumped.Mul(price).GreaterThanOrEqual(rules.MinNotional) && bumped.LessThanOrEqual(maxBump) {
		v.logger.Debug("min notional auto-fix",
			"symbol", rules.Symbol,
			"amount", amount,
			"bumped", bumped,
		)
		res.Amount = bumped
		res.AutoFixed = true
		res.Violations = append(res.Violations, ViolationMinCostAutoFixed)
		return res
	}

	res.MinCostHit = true
	res.Violations = append(res.Violations, ViolationMinCost)
	return res
}

// ValidateOrderParams is the strict pre-submission gate: no repairs, just a
// verdict. It is called immediately before the network call, after the
// repair-oriented path has already run.
func (v *Validator) ValidateOrderParams(price, amount decimal.Decimal, rules types.MarketRules) (bool, string, map[string]string) {
	details := map[string]string{
		"symbol": rules.Symbol,
		"price":  price.String(),
		"amount": amount.String(),
	}

	if price.Sign() <= 0 {
		return false, "price must be positive", details
	}
	if amount.Sign() <= 0 {
		return false, "amount must be positive", details
	}
	if rules.PriceTick.Sign() > 0 && !price.Mod(rules.PriceTick).IsZero() {
		details["price_tick"] = rules.PriceTick.String()
		return false, fmt.Sprintf("price %s not aligned to tick %s", price, rules.PriceTick), details
	}
	if rules.AmountStep.Sign() > 0 && !amount.Mod(rules.AmountStep).IsZero() {
		details["amount_step"] = rules.AmountStep.String()
		return false, fmt.Sprintf("amount %s not aligned to step %s", amount, rules.AmountStep), details
	}
	if rules.MinNotional.Sign() > 0 {
		notional := price.Mul(amount)
		details["notional"] = notional.String()
		if notional.LessThan(rules.MinNotional) {
			details["min_notional"] = rules.MinNotional.String()
			return false, fmt.Sprintf("notional %s below minimum %s", notional, rules.MinNotional), details
		}
	}

	return true, "", details
}
