package pricing

import (
	"fmt"
	"sort"

	bookingDomain "github.com/crestline-tours/service-booking/internal/domain/booking"
	"github.com/crestline-tours/service-booking/internal/domain"
	"github.com/crestline-tours/service-booking/internal/domain/rules"
	"go.uber.org/zap"
)

// Evaluator selects and applies the winning pricing rule for a request.
// For a fixed rule snapshot it is a pure function of the request.
type Evaluator struct {
	depositPercent int
	currency       string
	log            *zap.Logger
}

// NewEvaluator creates a pricing evaluator.
func NewEvaluator(depositPercent int, currency string, log *zap.Logger) *Evaluator {
	return &Evaluator{depositPercent: depositPercent, currency: currency, log: log}
}

// Quote computes the price breakdown for the request against the rule
// snapshot. When the top two candidates tie on both priority and
// specificity the evaluator fails closed with AmbiguousRuleError: silent
// mispricing is worse than a rejected quote.
func (e *Evaluator) Quote(req bookingDomain.BookingRequest, snap rules.Snapshot) (*bookingDomain.PriceBreakdown, error) {
	in := rules.MatchInput{
		Date:            req.Date,
		DurationMinutes: req.DurationMinutes,
		PartySize:       req.PartySize,
		VehicleClass:    req.VehicleClass,
		IsHoliday:       snap.IsHoliday(req.Date),
	}

	var candidates []rules.PricingRule
	for _, r := range snap.Pricing {
		if r.Matches(in) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil, domain.NewValidationError("no pricing rule matches the request")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].Specificity() > candidates[j].Specificity()
	})

	if len(candidates) > 1 {
		a, b := candidates[0], candidates[1]
		if a.Priority == b.Priority && a.Specificity() == b.Specificity() {
			e.log.Error("ambiguous pricing rules",
				zap.Int64("rule_a", a.ID),
				zap.Int64("rule_b", b.ID),
				zap.Int("priority", a.Priority),
				zap.Int("specificity", a.Specificity()),
			)
			return nil, domain.NewAmbiguousRuleError(
				fmt.Sprintf("rules %d and %d tie on priority %d and specificity %d", a.ID, b.ID, a.Priority, a.Specificity()))
		}
	}

	return e.apply(candidates[0], req), nil
}

// apply computes the breakdown for the winning rule. The linear formula is
// clamped before the multiplier and the final figure is clamped again when
// both bounds are set: once to keep the formula sane, once to cap the
// customer-facing number.
func (e *Evaluator) apply(rule rules.PricingRule, req bookingDomain.BookingRequest) *bookingDomain.PriceBreakdown {
	hourly := divRoundHalfEven(rule.PerHourCents*int64(req.DurationMinutes), 60)
	perPerson := rule.PerPersonCents * int64(req.PartySize)

	linear := rule.BasePriceCents + hourly + perPerson
	clamped := clamp(linear, rule.MinPriceCents, rule.MaxPriceCents)

	total := divRoundHalfEven(clamped*int64(rule.MultiplierPercent), 100)
	if rule.MinPriceCents != nil && rule.MaxPriceCents != nil {
		total = clamp(total, rule.MinPriceCents, rule.MaxPriceCents)
	}

	modifiers := make([]bookingDomain.PriceModifier, 0, 4)
	if hourly != 0 {
		modifiers = append(modifiers, bookingDomain.PriceModifier{Name: "hourly rate", AmountCents: hourly})
	}
	if perPerson != 0 {
		modifiers = append(modifiers, bookingDomain.PriceModifier{Name: "per person", AmountCents: perPerson})
	}
	if clamped != linear {
		modifiers = append(modifiers, bookingDomain.PriceModifier{Name: "price bounds", AmountCents: clamped - linear})
	}
	if total != clamped {
		modifiers = append(modifiers, bookingDomain.PriceModifier{Name: "rate multiplier", AmountCents: total - clamped})
	}

	deposit, balance := splitDeposit(total, e.depositPercent)
	return &bookingDomain.PriceBreakdown{
		BaseCents:     rule.BasePriceCents,
		Modifiers:     modifiers,
		SubtotalCents: clamped,
		DepositCents:  deposit,
		BalanceCents:  balance,
		TotalCents:    total,
		Currency:      e.currency,
		RuleID:        rule.ID,
		RuleName:      rule.Name,
	}
}

func clamp(v int64, min, max *int64) int64 {
	if min != nil && v < *min {
		v = *min
	}
	if max != nil && v > *max {
		v = *max
	}
	return v
}
