package booking

// PriceModifier is one named adjustment applied to the subtotal.
type PriceModifier struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
}

// PriceBreakdown is the customer-facing decomposition of a quote. All
// amounts are integer minor units. BalanceCents is always derived as
// TotalCents - DepositCents so the two sum exactly by construction.
type PriceBreakdown struct {
	BaseCents     int64           `json:"base_cents"`
	Modifiers     []PriceModifier `json:"modifiers,omitempty"`
	SubtotalCents int64           `json:"subtotal_cents"`
	DepositCents  int64           `json:"deposit_cents"`
	BalanceCents  int64           `json:"balance_cents"`
	TotalCents    int64           `json:"total_cents"`
	Currency      string          `json:"currency"`
	RuleID        int64           `json:"rule_id"`
	RuleName      string          `json:"rule_name"`
}
