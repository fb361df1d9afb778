package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/crestline-tours/service-booking/internal/domain/resource"
	"github.com/crestline-tours/service-booking/internal/domain/rules"
	"gorm.io/gorm"
)

// AvailabilityRuleModel is the GORM model for the availability_rules table.
// The table is owned by the operations back office; this service only
// reads it.
type AvailabilityRuleModel struct {
	ID            int64      `gorm:"primaryKey"`
	Kind          string     `gorm:"not null;size:20"`
	ResourceID    *int64     `gorm:"index"`
	FromDate      *time.Time `gorm:"column:from_date"`
	ToDate        *time.Time `gorm:"column:to_date"`
	Reason        string     `gorm:"size:200"`
	BufferMinutes int        `gorm:"not null;default:0"`
	ResourceKind  string     `gorm:"size:20"`
	MaxPerDay     int        `gorm:"not null;default:0"`
}

// TableName returns the table name for the GORM model.
func (AvailabilityRuleModel) TableName() string {
	return "availability_rules"
}

// PricingRuleModel is the GORM model for the pricing_rules table.
type PricingRuleModel struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"not null;size:200"`

	VehicleClass   *string    `gorm:"size:50"`
	DurationBucket *string    `gorm:"size:20"`
	DayOfWeek      *int       `gorm:""`
	Weekend        *bool      `gorm:""`
	Holiday        *bool      `gorm:""`
	Season         *string    `gorm:"size:20"`
	DateFrom       *time.Time `gorm:""`
	DateTo         *time.Time `gorm:""`

	BasePriceCents    int64  `gorm:"not null;default:0"`
	PerHourCents      int64  `gorm:"not null;default:0"`
	PerPersonCents    int64  `gorm:"not null;default:0"`
	MultiplierPercent int    `gorm:"not null;default:100"`
	MinPriceCents     *int64 `gorm:""`
	MaxPriceCents     *int64 `gorm:""`

	Priority   int        `gorm:"not null;default:0;index"`
	Active     bool       `gorm:"not null;default:true"`
	ValidFrom  *time.Time `gorm:""`
	ValidUntil *time.Time `gorm:""`
}

// TableName returns the table name for the GORM model.
func (PricingRuleModel) TableName() string {
	return "pricing_rules"
}

// HolidayModel is the GORM model for the holidays table.
type HolidayModel struct {
	Date time.Time `gorm:"primaryKey"`
	Name string    `gorm:"size:100"`
}

// TableName returns the table name for the GORM model.
func (HolidayModel) TableName() string {
	return "holidays"
}

// GormRuleRepository reads availability rules, pricing rules and the
// holiday calendar from the shared database.
type GormRuleRepository struct {
	db *gorm.DB
}

// NewGormRuleRepository creates a new GormRuleRepository.
func NewGormRuleRepository(db *gorm.DB) *GormRuleRepository {
	return &GormRuleRepository{db: db}
}

// Snapshot loads and validates the full rule set as one immutable view.
// Rows with unknown rule kinds fail the load; a misconfigured rule store
// must not silently relax constraints.
func (r *GormRuleRepository) Snapshot(ctx context.Context) (rules.Snapshot, error) {
	var availModels []AvailabilityRuleModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&availModels).Error; err != nil {
		return rules.Snapshot{}, fmt.Errorf("failed to load availability rules: %w", err)
	}

	var pricingModels []PricingRuleModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&pricingModels).Error; err != nil {
		return rules.Snapshot{}, fmt.Errorf("failed to load pricing rules: %w", err)
	}

	var holidayModels []HolidayModel
	if err := r.db.WithContext(ctx).Order("date ASC").Find(&holidayModels).Error; err != nil {
		return rules.Snapshot{}, fmt.Errorf("failed to load holidays: %w", err)
	}

	availability := make([]rules.AvailabilityRule, 0, len(availModels))
	for _, m := range availModels {
		availability = append(availability, toAvailabilityRule(m))
	}

	pricing := make([]rules.PricingRule, 0, len(pricingModels))
	for _, m := range pricingModels {
		pricing = append(pricing, toPricingRule(m))
	}

	holidays := make([]string, 0, len(holidayModels))
	for _, m := range holidayModels {
		holidays = append(holidays, m.Date.Format("2006-01-02"))
	}

	return rules.NewSnapshot(time.Now().UTC(), availability, pricing, holidays)
}

func toAvailabilityRule(m AvailabilityRuleModel) rules.AvailabilityRule {
	rule := rules.AvailabilityRule{
		ID:            m.ID,
		Kind:          rules.AvailabilityRuleKind(m.Kind),
		ResourceID:    m.ResourceID,
		Reason:        m.Reason,
		BufferMinutes: m.BufferMinutes,
		MaxPerDay:     m.MaxPerDay,
	}
	if m.FromDate != nil {
		rule.From = *m.FromDate
	}
	if m.ToDate != nil {
		rule.To = *m.ToDate
	}
	if m.ResourceKind != "" {
		rule.ResourceKind = resource.Kind(m.ResourceKind)
	}
	return rule
}

func toPricingRule(m PricingRuleModel) rules.PricingRule {
	rule := rules.PricingRule{
		ID:                m.ID,
		Name:              m.Name,
		VehicleClass:      m.VehicleClass,
		Weekend:           m.Weekend,
		Holiday:           m.Holiday,
		DateFrom:          m.DateFrom,
		DateTo:            m.DateTo,
		BasePriceCents:    m.BasePriceCents,
		PerHourCents:      m.PerHourCents,
		PerPersonCents:    m.PerPersonCents,
		MultiplierPercent: m.MultiplierPercent,
		MinPriceCents:     m.MinPriceCents,
		MaxPriceCents:     m.MaxPriceCents,
		Priority:          m.Priority,
		Active:            m.Active,
		ValidFrom:         m.ValidFrom,
		ValidUntil:        m.ValidUntil,
	}
	if m.DurationBucket != nil {
		b := rules.DurationBucket(*m.DurationBucket)
		rule.DurationBucket = &b
	}
	if m.DayOfWeek != nil {
		d := time.Weekday(*m.DayOfWeek)
		rule.DayOfWeek = &d
	}
	if m.Season != nil {
		s := rules.Season(*m.Season)
		rule.Season = &s
	}
	return rule
}
