package store

import (
	"context"
	"time"

	"github.com/talkincode/wagate/internal/domain"
	"github.com/talkincode/wagate/internal/errs"
	"gorm.io/gorm/clause"
)

const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 500
)

func (r *GormMessageRepository) Upsert(ctx context.Context, msg *domain.Message) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instance_id"}, {Name: "message_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(msg).Error
	if err != nil {
		return errs.Persistence(err, "upsert message %s/%s", msg.InstanceID, msg.MessageID)
	}
	return nil
}

func (r *GormMessageRepository) UpdateStatus(ctx context.Context, instanceID, messageID, status string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("instance_id = ? AND message_id = ?", instanceID, messageID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if result.Error != nil {
		return false, errs.Persistence(result.Error, "update message %s/%s status", instanceID, messageID)
	}
	return result.RowsAffected > 0, nil
}

func (r *GormMessageRepository) List(ctx context.Context, instanceID string, filter MessageFilter) ([]*domain.Message, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	if limit > MaxMessageLimit {
		limit = MaxMessageLimit
	}
	query := r.db.WithContext(ctx).Where("instance_id = ?", instanceID)
	if filter.RemoteID != "" {
		query = query.Where("remote_id = ?", filter.RemoteID)
	}
	var items []*domain.Message
	if err := query.Order("timestamp DESC").Limit(limit).Find(&items).Error; err != nil {
		return nil, errs.Persistence(err, "list messages %s", instanceID)
	}
	return items, nil
}

func (r *GormMessageRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("timestamp < ?", before).Delete(&domain.Message{})
	if result.Error != nil {
		return 0, errs.Persistence(result.Error, "delete messages before %s", before.Format(time.RFC3339))
	}
	return result.RowsAffected, nil
}
