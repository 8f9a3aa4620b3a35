package domain

// PriceResolver formalizes the prioritized price lookup: active
// ProductPrice override, then the product's own month table, then the
// flat base price.
type PriceResolver struct{}

// EnrollmentMonthPrice resolves the price charged for the month a
// student enrolls in.
func (PriceResolver) EnrollmentMonthPrice(product Product, override *ProductPrice, month int) int64 {
	if override != nil && override.IsActive {
		if p := override.Enrollment.Month(month); p != nil {
			return *p
		}
	}
	if p := product.Enrollment.Month(month); p != nil {
		return *p
	}
	return product.BasePrice
}

// BillingMonthPrice resolves the ongoing monthly price for a target
// billing month.
func (PriceResolver) BillingMonthPrice(product Product, override *ProductPrice, month int) int64 {
	if override != nil && override.IsActive {
		if p := override.Billing.Month(month); p != nil {
			return *p
		}
	}
	if p := product.Billing.Month(month); p != nil {
		return *p
	}
	return product.BasePrice
}
