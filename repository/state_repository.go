package repository

import (
	"context"
	"encoding/json"
	"errors"

	"TandemFM/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StateRepository 房间状态快照数据访问接口
type StateRepository interface {
	// Upsert writes the last-known state for a room and kind. One row per
	// (room, kind); later writes replace earlier ones.
	Upsert(ctx context.Context, rec *model.StateRecord) error
	Get(ctx context.Context, roomID, kind string) (*model.StateRecord, error)
	DeleteByRoom(ctx context.Context, roomID string) error
}

type gormStateRepository struct {
	db *gorm.DB
}

// NewGormStateRepository creates a GORM-backed state repository.
func NewGormStateRepository(db *gorm.DB) StateRepository {
	return &gormStateRepository{db: db}
}

func (r *gormStateRepository) Upsert(ctx context.Context, rec *model.StateRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_by", "updated_at"}),
	}).Create(rec).Error
}

func (r *gormStateRepository) Get(ctx context.Context, roomID, kind string) (*model.StateRecord, error) {
	var rec model.StateRecord
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND kind = ?", roomID, kind).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *gormStateRepository) DeleteByRoom(ctx context.Context, roomID string) error {
	return r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Delete(&model.StateRecord{}).Error
}

// StateStore adapts a StateRepository to the snapshot store used by the sync
// loop and the relay hub, serializing snapshots as JSON payload rows. It is
// the durable sibling of the Redis room cache: the hub writes through both,
// and reads fall back here when the cache has nothing.
type StateStore struct {
	states StateRepository
}

// NewStateStore wraps a StateRepository as a snapshot store.
func NewStateStore(states StateRepository) *StateStore {
	return &StateStore{states: states}
}

// SavePlayback implements songsync.SnapshotStore.
func (s *StateStore) SavePlayback(ctx context.Context, roomID string, snap *model.PlaybackSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.states.Upsert(ctx, &model.StateRecord{
		RoomID:    roomID,
		Kind:      model.StateKindPlayback,
		Payload:   payload,
		UpdatedBy: snap.SenderID,
	})
}

// LoadPlayback implements songsync.SnapshotStore. Returns nil when no
// snapshot has ever been written for the room.
func (s *StateStore) LoadPlayback(ctx context.Context, roomID string) (*model.PlaybackSnapshot, error) {
	rec, err := s.states.Get(ctx, roomID, model.StateKindPlayback)
	if err != nil || rec == nil {
		return nil, err
	}
	var snap model.PlaybackSnapshot
	if err := json.Unmarshal(rec.Payload, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SaveView writes the room's last view snapshot.
func (s *StateStore) SaveView(ctx context.Context, roomID string, snap *model.ViewSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.states.Upsert(ctx, &model.StateRecord{
		RoomID:    roomID,
		Kind:      model.StateKindView,
		Payload:   payload,
		UpdatedBy: snap.SenderID,
	})
}

// LoadView returns the room's last view snapshot, or nil.
func (s *StateStore) LoadView(ctx context.Context, roomID string) (*model.ViewSnapshot, error) {
	rec, err := s.states.Get(ctx, roomID, model.StateKindView)
	if err != nil || rec == nil {
		return nil, err
	}
	var snap model.ViewSnapshot
	if err := json.Unmarshal(rec.Payload, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// DeleteByRoom drops every stored snapshot for a room, e.g. when it closes.
func (s *StateStore) DeleteByRoom(ctx context.Context, roomID string) error {
	return s.states.DeleteByRoom(ctx, roomID)
}
