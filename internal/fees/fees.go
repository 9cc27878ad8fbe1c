// Package fees computes the payable amount for a cart subtotal.
//
// The rates and app-fee tiers are contractual constants shared with the
// payment gateway and the client apps; the rounding here must match them
// to the rupee.
package fees

import "github.com/shopspring/decimal"

var (
	gatewayFeeRate = decimal.RequireFromString("0.02")
	gatewayTaxRate = decimal.RequireFromString("0.18")
	backendFeeRate = decimal.RequireFromString("0.005")
)

// appFeeTiers maps subtotal upper bounds (exclusive) to the flat app fee.
// Anything at or above the last bound pays appFeeTop.
var appFeeTiers = []struct {
	below decimal.Decimal
	fee   decimal.Decimal
}{
	{decimal.NewFromInt(130), decimal.NewFromInt(2)},
	{decimal.NewFromInt(200), decimal.NewFromInt(4)},
	{decimal.NewFromInt(300), decimal.NewFromInt(5)},
	{decimal.NewFromInt(550), decimal.NewFromInt(6)},
}

var appFeeTop = decimal.NewFromInt(10)

// Breakdown is the fee decomposition embedded in every order.
type Breakdown struct {
	GatewayFeeBase decimal.Decimal
	GatewayTax     decimal.Decimal
	BackendFee     decimal.Decimal
	AppFee         decimal.Decimal
	FinalPayable   decimal.Decimal
}

// Calculate derives all fees from a non-negative items total. Pure.
func Calculate(itemsTotal decimal.Decimal) Breakdown {
	gatewayFeeBase := itemsTotal.Mul(gatewayFeeRate)
	gatewayTax := gatewayFeeBase.Mul(gatewayTaxRate)
	backendFee := itemsTotal.Mul(backendFeeRate).Ceil()
	appFee := AppFee(itemsTotal)

	total := itemsTotal.Add(gatewayFeeBase).Add(gatewayTax).Add(backendFee).Add(appFee)

	return Breakdown{
		GatewayFeeBase: gatewayFeeBase,
		GatewayTax:     gatewayTax,
		BackendFee:     backendFee,
		AppFee:         appFee,
		FinalPayable:   total.Ceil(),
	}
}

// AppFee returns the tiered flat fee for a subtotal. Bounds are strict:
// a subtotal exactly on a boundary falls in the next tier up.
func AppFee(itemsTotal decimal.Decimal) decimal.Decimal {
	for _, tier := range appFeeTiers {
		if itemsTotal.LessThan(tier.below) {
			return tier.fee
		}
	}
	return appFeeTop
}
