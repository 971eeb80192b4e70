package compliance

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/quanvu/dipbot/internal/types"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testRules() types.MarketRules {
	return types.MarketRules{
		Symbol:      "BTC/USDT",
		PriceTick:   d("0.01"),
		AmountStep:  d("0.0001"),
		MinNotional: d("5"),
	}
}

func TestQuantizeAndValidate_CompliantInput(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)

	res := v.QuantizeAndValidate(d("50000.00"), d("0.0010"), testRules())
	if !res.Valid() {
		t.Fatalf("expected valid result, got violations %v", res.Violations)
	}
	if !res.Price.Equal(d("50000")) {
		t.Errorf("Price = %s, want 50000", res.Price)
	}
	if !res.Amount.Equal(d("0.001")) {
		t.Errorf("Amount = %s, want 0.001", res.Amount)
	}
	if res.AutoFixed {
		t.Error("compliant input should not be auto-fixed")
	}
}

func TestQuantizeAndValidate_FlooringTagged(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)

	res := v.QuantizeAndValidate(d("50000.017"), d("0.00123456"), testRules())
	if !res.Valid() {
		t.Fatalf("expected valid result, got violations %v", res.Violations)
	}
	if !res.Price.Equal(d("50000.01")) {
		t.Errorf("Price = %s, want 50000.01", res.Price)
	}
	if !res.Amount.Equal(d("0.0012")) {
		t.Errorf("Amount = %s, want 0.0012", res.Amount)
	}
	if !res.Has(ViolationPriceAdjusted) {
		t.Error("expected price_adjusted tag")
	}
	if !res.Has(ViolationAmountAdjusted) {
		t.Error("expected amount_adjusted tag")
	}
}

func TestQuantizeAndValidate_ZeroAmountAfterQuantize(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)

	// Amount below one step floors to zero.
	res := v.QuantizeAndValidate(d("50000"), d("0.00005"), testRules())
	if res.Valid() {
		t.Fatal("expected invalid result")
	}
	if !res.Has(ViolationInvalidAmountQuantized) {
		t.Errorf("expected invalid_amount_after_quantize, got %v", res.Violations)
	}
}

func TestQuantizeAndValidate_ZeroPrice(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)

	res := v.QuantizeAndValidate(d("0.001"), d("1"), testRules())
	if res.Valid() {
		t.Fatal("expected invalid result")
	}
	if !res.Has(ViolationInvalidPrice) {
		t.Errorf("expected invalid_price, got %v", res.Violations)
	}
}

func TestQuantizeAndValidate_MinNotionalAutoBump(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	rules := types.MarketRules{
		Symbol:      "SHIB/USDT",
		PriceTick:   d("0.000001"),
		AmountStep:  d("1"),
		MinNotional: d("5"),
	}

	res := v.QuantizeAndValidate(d("0.0379874"), d("1"), rules)
	if !res.Valid() {
		t.Fatalf("expected valid result, got violations %v", res.Violations)
	}
	if !res.AutoFixed {
		t.Error("expected auto-fix")
	}
	if !res.Has(ViolationMinCostAutoFixed) {
		t.Error("expected min_cost_auto_fixed tag")
	}
	if res.Amount.LessThan(d("132")) {
		t.Errorf("bumped amount = %s, want >= 132", res.Amount)
	}
	if res.Price.Mul(res.Amount).LessThan(d("5")) {
		t.Errorf("notional %s below minimum after bump", res.Price.Mul(res.Amount))
	}
}

func TestQuantizeAndValidate_UnfixableMinNotional(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	rules := types.MarketRules{
		Symbol:      "XYZ/USDT",
		MinNotional: d("1000"),
	}

	res := v.QuantizeAndValidate(d("0.01"), d("1"), rules)
	if res.Valid() {
		t.Fatal("expected invalid result")
	}
	if !res.Has(ViolationMinCost) {
		t.Errorf("expected min_cost_violation, got %v", res.Violations)
	}
	if !res.MinCostHit {
		t.Error("expected MinCostHit")
	}
}

func TestQuantizeAndValidate_ComplianceInvariant(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	rules := testRules()

	inputs := []struct{ price, amount string }{
		{"50000.017", "0.00123456"},
		{"0.999", "10000"},
		{"123.456", "0.05"},
		{"50000", "0.00011"},
	}

	for _, in := range inputs {
		res := v.QuantizeAndValidate(d(in.price), d(in.amount), rules)
		if !res.Valid() {
			continue
		}
		if !res.Price.Mod(rules.PriceTick).IsZero() {
			t.Errorf("price %s not tick-aligned for input %+v", res.Price, in)
		}
		if !res.Amount.Mod(rules.AmountStep).IsZero() {
			t.Errorf("amount %s not step-aligned for input %+v", res.Amount, in)
		}
		if res.Price.Mul(res.Amount).LessThan(rules.MinNotional) {
			t.Errorf("notional %s below minimum for input %+v", res.Price.Mul(res.Amount), in)
		}
	}
}

func TestValidateOrderParams(t *testing.T) {
	v := NewValidator(DefaultConfig(), nil)
	rules := testRules()

	tests := []struct {
		name   string
		price  string
		amount string
		ok     bool
	}{
		{"valid", "50000", "0.001", true},
		{"zero price", "0", "0.001", false},
		{"zero amount", "50000", "0", false},
		{"price off tick", "50000.015", "0.001", false},
		{"amount off step", "50000", "0.00015", false},
		{"below min notional", "1", "0.001", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason, details := v.ValidateOrderParams(d(tt.price), d(tt.amount), rules)
			if ok != tt.ok {
				t.Errorf("ok = %v (%s), want %v", ok, reason, tt.ok)
			}
			if !ok && reason == "" {
				t.Error("invalid result must carry a reason")
			}
			if details["symbol"] != rules.Symbol {
				t.Errorf("details symbol = %s, want %s", details["symbol"], rules.Symbol)
			}
		})
	}
}
