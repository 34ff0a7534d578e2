// Package pricing computes order totals. Everything is integer arithmetic in
// the smallest currency unit; the engine is pure and safe to re-run against
// stored fixtures.
package pricing

// BundleTable maps total ticket quantity to a fixed rebate. Loaded from
// config once, read-only afterwards.
type BundleTable map[int]int64

// Discount is a validated percentage descriptor attached to a checkout.
type Discount struct {
	Code    string
	Percent int64
}

type Snapshot struct {
	UnitPrice            int64
	Quantity             int
	Subtotal             int64
	DiscountAmount       int64
	BundleDiscountAmount int64
	FinalAmount          int64
}

// Compute prices one checkout. The percentage discount and the bundle rebate
// both apply to the raw subtotal and are summed, not compounded; the final
// amount is clamped at zero.
func Compute(unitPrice int64, quantity int, disc *Discount, bundleEnabled bool, table BundleTable) Snapshot {
	subtotal := unitPrice * int64(quantity)

	var discountAmount int64
	if disc != nil {
		discountAmount = subtotal * disc.Percent / 100
	}

	var bundleAmount int64
	if bundleEnabled {
		bundleAmount = table[quantity]
	}

	final := subtotal - discountAmount - bundleAmount
	if final < 0 {
		final = 0
	}

	return Snapshot{
		UnitPrice:            unitPrice,
		Quantity:             quantity,
		Subtotal:             subtotal,
		DiscountAmount:       discountAmount,
		BundleDiscountAmount: bundleAmount,
		FinalAmount:          final,
	}
}
