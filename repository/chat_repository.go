package repository

import (
	"context"

	"TandemFM/model"

	"gorm.io/gorm"
)

// ChatRepository 聊天记录数据访问接口
type ChatRepository interface {
	Append(ctx context.Context, rec *model.ChatRecord) error
	ListByRoom(ctx context.Context, roomID string, limit int) ([]model.ChatRecord, error)
	DeleteByRoom(ctx context.Context, roomID string) error
}

type gormChatRepository struct {
	db *gorm.DB
}

// NewGormChatRepository creates a GORM-backed chat repository.
func NewGormChatRepository(db *gorm.DB) ChatRepository {
	return &gormChatRepository{db: db}
}

func (r *gormChatRepository) Append(ctx context.Context, rec *model.ChatRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *gormChatRepository) ListByRoom(ctx context.Context, roomID string, limit int) ([]model.ChatRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	var recs []model.ChatRecord
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

func (r *gormChatRepository) DeleteByRoom(ctx context.Context, roomID string) error {
	return r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Delete(&model.ChatRecord{}).Error
}
