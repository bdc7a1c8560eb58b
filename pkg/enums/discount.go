package enums

// DiscountType maps to the discount_type enum in Postgres.
type DiscountType string

const (
	DiscountTypePercentage  DiscountType = "percentage"
	DiscountTypeFixedAmount DiscountType = "fixed_amount"
)

var discountTypes = newValueSet("discount type", DiscountTypePercentage, DiscountTypeFixedAmount)

func (d DiscountType) IsValid() bool { return discountTypes.has(d) }

// DiscountMode selects how the pricing engine picks discounts.
type DiscountMode string

const (
	DiscountModeAutomatic DiscountMode = "automatic"
	DiscountModeSelected  DiscountMode = "selected"
	DiscountModeManual    DiscountMode = "manual"
)

var discountModes = newValueSet("discount mode", DiscountModeAutomatic, DiscountModeSelected, DiscountModeManual)

func (d DiscountMode) IsValid() bool { return discountModes.has(d) }

// ParseDiscountMode reads a request's mode; blank means automatic.
func ParseDiscountMode(value string) (DiscountMode, error) {
	if value == "" {
		return DiscountModeAutomatic, nil
	}
	return discountModes.parse(value)
}
