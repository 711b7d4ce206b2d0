package repository

import (
	"context"
	"errors"
	"time"

	"TandemFM/model"

	"gorm.io/gorm"
)

// RoomRepository 房间数据访问接口
type RoomRepository interface {
	Create(ctx context.Context, room *model.Room) error
	GetByID(ctx context.Context, id string) (*model.Room, error)
	// FindActiveBetween returns the open room shared by two users, in either
	// owner/partner orientation, or nil.
	FindActiveBetween(ctx context.Context, userA, userB int64) (*model.Room, error)
	ListActiveForUser(ctx context.Context, userID int64) ([]model.Room, error)
	SetPartner(ctx context.Context, id string, partnerID int64) error
	Touch(ctx context.Context, id string) error
	Close(ctx context.Context, id string) error
}

type gormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a GORM-backed room repository.
func NewGormRoomRepository(db *gorm.DB) RoomRepository {
	return &gormRoomRepository{db: db}
}

func (r *gormRoomRepository) Create(ctx context.Context, room *model.Room) error {
	if room.LastActivity.IsZero() {
		room.LastActivity = time.Now()
	}
	room.Active = true
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *gormRoomRepository) GetByID(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *gormRoomRepository) FindActiveBetween(ctx context.Context, userA, userB int64) (*model.Room, error) {
	var room model.Room
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Where("(owner_id = ? AND partner_id = ?) OR (owner_id = ? AND partner_id = ?)",
			userA, userB, userB, userA).
		First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *gormRoomRepository) ListActiveForUser(ctx context.Context, userID int64) ([]model.Room, error) {
	var rooms []model.Room
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Where("owner_id = ? OR partner_id = ?", userID, userID).
		Order("last_activity DESC").
		Find(&rooms).Error
	return rooms, err
}

func (r *gormRoomRepository) SetPartner(ctx context.Context, id string, partnerID int64) error {
	return r.db.WithContext(ctx).Model(&model.Room{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"partner_id":    partnerID,
			"last_activity": time.Now(),
		}).Error
}

func (r *gormRoomRepository) Touch(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.Room{}).
		Where("id = ?", id).
		Update("last_activity", time.Now()).Error
}

func (r *gormRoomRepository) Close(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.Room{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"active":    false,
			"closed_at": &now,
		}).Error
}
