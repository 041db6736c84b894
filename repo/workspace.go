package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Deployment is one successful deploy of a workspace.
type Deployment struct {
	gorm.Model
	Workspace string `gorm:"index:idx_deployment_workspace"`
	Namespace string `gorm:"index:idx_deployment_workspace"`
	Host      string
	Rotated   bool
	Objects   int
	// State is the JSON state snapshot that was applied.
	State string `gorm:"type:text"`
}

// Store is the deployment ledger.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Record(ctx context.Context, d *Deployment) error {
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("record deployment of %s/%s: %w", d.Namespace, d.Workspace, err)
	}
	return nil
}

// List returns the newest deployments first. An empty namespace lists all of them
// and a non-positive limit disables paging.
func (s *Store) List(ctx context.Context, namespace string, offset, limit int) ([]Deployment, error) {
	var deployments []Deployment
	if err := listQuery(s.db.WithContext(ctx), namespace, offset, limit).Find(&deployments).Error; err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	return deployments, nil
}

func listQuery(tx *gorm.DB, namespace string, offset, limit int) *gorm.DB {
	tx = tx.Model(&Deployment{}).Order("created_at desc")
	if namespace != "" {
		tx = tx.Where("namespace = ?", namespace)
	}
	if limit > 0 {
		tx = tx.Limit(limit).Offset(offset)
	}
	return tx
}

// Latest returns the most recent deployment of a workspace, or nil if it was never
// deployed.
func (s *Store) Latest(ctx context.Context, namespace, workspace string) (*Deployment, error) {
	var d Deployment
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND workspace = ?", namespace, workspace).
		Order("created_at desc").
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get deployment of %s/%s: %w", namespace, workspace, err)
	}
	return &d, nil
}
