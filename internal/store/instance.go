package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/wagate/internal/domain"
	"github.com/talkincode/wagate/internal/errs"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *GormInstanceRepository) Create(ctx context.Context, inst *domain.Instance) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(inst).Error
	if err != nil {
		return errs.Persistence(err, "create instance %s", inst.ID)
	}
	return nil
}

func (r *GormInstanceRepository) GetByID(ctx context.Context, id string) (*domain.Instance, error) {
	var inst domain.Instance
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("instance %s not found", id)
	}
	if err != nil {
		return nil, errs.Persistence(err, "get instance %s", id)
	}
	return &inst, nil
}

func (r *GormInstanceRepository) List(ctx context.Context) ([]*domain.Instance, error) {
	var items []*domain.Instance
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, errs.Persistence(err, "list instances")
	}
	return items, nil
}

func (r *GormInstanceRepository) UpdateStatus(ctx context.Context, id, status, accountIdentifier string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if accountIdentifier != "" {
		updates["account_identifier"] = accountIdentifier
	}
	err := r.db.WithContext(ctx).Model(&domain.Instance{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return errs.Persistence(err, "update instance %s status", id)
	}
	return nil
}

func (r *GormInstanceRepository) UpdatePairingArtifact(ctx context.Context, id, artifact string) error {
	err := r.db.WithContext(ctx).Model(&domain.Instance{}).Where("id = ?", id).Updates(map[string]interface{}{
		"pairing_artifact": artifact,
		"updated_at":       time.Now(),
	}).Error
	if err != nil {
		return errs.Persistence(err, "update instance %s pairing artifact", id)
	}
	return nil
}

func (r *GormInstanceRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Instance{}).Error; err != nil {
		return errs.Persistence(err, "delete instance %s", id)
	}
	return nil
}
