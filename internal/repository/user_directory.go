package repository

import (
	"context"
	"fmt"

	"affiliate-platform/internal/models"

	"gorm.io/gorm"
)

// StoredProcedureDirectory enumerates users through the get_all_user_ids()
// function installed by the SQL migrations.
type StoredProcedureDirectory struct {
	db *gorm.DB
}

func NewStoredProcedureDirectory(db *gorm.DB) *StoredProcedureDirectory {
	return &StoredProcedureDirectory{db: db}
}

func (d *StoredProcedureDirectory) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := d.db.WithContext(ctx).Raw("SELECT user_id FROM get_all_user_ids()").Scan(&ids).Error; err != nil {
		return nil, fmt.Errorf("get_all_user_ids: %w", err)
	}
	return ids, nil
}

// ReferralTableDirectory treats every user with a referral record as known.
// Used with SQLite, which has no stored procedures.
type ReferralTableDirectory struct {
	db *gorm.DB
}

func NewReferralTableDirectory(db *gorm.DB) *ReferralTableDirectory {
	return &ReferralTableDirectory{db: db}
}

func (d *ReferralTableDirectory) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := d.db.WithContext(ctx).
		Model(&models.UserReferral{}).
		Order("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
