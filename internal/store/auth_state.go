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

func (s *GormAuthStateStore) Save(ctx context.Context, instanceID string, creds domain.Credentials) error {
	rec := &domain.AuthState{
		InstanceID:  instanceID,
		Credentials: creds.Creds,
		Keys:        creds.Keys,
		UpdatedAt:   time.Now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instance_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"credentials", "keys", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		return errs.Persistence(err, "save auth state %s", instanceID)
	}
	return nil
}

func (s *GormAuthStateStore) Load(ctx context.Context, instanceID string) (*domain.Credentials, error) {
	var rec domain.AuthState
	err := s.db.WithContext(ctx).Where("instance_id = ?", instanceID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence(err, "load auth state %s", instanceID)
	}
	return &domain.Credentials{Creds: rec.Credentials, Keys: rec.Keys}, nil
}

func (s *GormAuthStateStore) Delete(ctx context.Context, instanceID string) error {
	err := s.db.WithContext(ctx).Where("instance_id = ?", instanceID).Delete(&domain.AuthState{}).Error
	if err != nil {
		return errs.Persistence(err, "delete auth state %s", instanceID)
	}
	return nil
}
