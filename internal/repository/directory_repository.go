package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/crestline-tours/service-booking/internal/domain/resource"
	"gorm.io/gorm"
)

// ResourceModel is the GORM model for the resources table. The table is
// owned by the fleet directory; this service only reads it.
type ResourceModel struct {
	ID       int64  `gorm:"primaryKey"`
	Kind     string `gorm:"not null;size:20;index"`
	Name     string `gorm:"not null;size:200"`
	Class    string `gorm:"size:50"`
	Capacity int    `gorm:"not null;default:0"`
	Active   bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for the GORM model.
func (ResourceModel) TableName() string {
	return "resources"
}

// GormDirectoryRepository reads the resource directory (vehicles and
// drivers) from the shared database.
type GormDirectoryRepository struct {
	db *gorm.DB
}

// NewGormDirectoryRepository creates a new GormDirectoryRepository.
func NewGormDirectoryRepository(db *gorm.DB) *GormDirectoryRepository {
	return &GormDirectoryRepository{db: db}
}

// Snapshot loads every resource into an immutable point-in-time view.
// Inactive resources are included so the engine can report them as
// ineligible rather than unknown.
func (r *GormDirectoryRepository) Snapshot(ctx context.Context) (resource.Snapshot, error) {
	var models []ResourceModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return resource.Snapshot{}, fmt.Errorf("failed to load resources: %w", err)
	}

	resources := make([]resource.Resource, 0, len(models))
	for _, m := range models {
		kind, err := resource.ParseKind(m.Kind)
		if err != nil {
			return resource.Snapshot{}, fmt.Errorf("resource %d: %w", m.ID, err)
		}
		resources = append(resources, resource.Resource{
			ID:       m.ID,
			Kind:     kind,
			Name:     m.Name,
			Class:    m.Class,
			Capacity: m.Capacity,
			Active:   m.Active,
		})
	}

	return resource.Snapshot{
		TakenAt:   time.Now().UTC(),
		Resources: resources,
	}, nil
}
