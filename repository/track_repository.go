package repository

import (
	"context"
	"errors"
	"fmt"

	"TandemFM/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TrackRepository 曲目数据访问接口
type TrackRepository interface {
	Create(ctx context.Context, track *model.Track) error
	// Upsert inserts a track or refreshes its metadata if the identity
	// already exists, keeping library imports idempotent.
	Upsert(ctx context.Context, track *model.Track) error
	GetByID(ctx context.Context, id string) (*model.Track, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Track, error)
	// ListRoomPartnerTracks returns the collection of the other participant
	// of a room, relative to userID.
	ListRoomPartnerTracks(ctx context.Context, roomID string, userID int64) ([]model.Track, error)
	SetFavorite(ctx context.Context, id string, userID int64, favorite bool) error
	Delete(ctx context.Context, id string, userID int64) error
}

type gormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository creates a GORM-backed track repository.
func NewGormTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

func (r *gormTrackRepository) Create(ctx context.Context, track *model.Track) error {
	return r.db.WithContext(ctx).Create(track).Error
}

func (r *gormTrackRepository) Upsert(ctx context.Context, track *model.Track) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "artist", "duration", "src", "cover_url", "favorite",
		}),
	}).Create(track).Error
}

func (r *gormTrackRepository) GetByID(ctx context.Context, id string) (*model.Track, error) {
	var track model.Track
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&track).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &track, nil
}

func (r *gormTrackRepository) ListByUser(ctx context.Context, userID int64) ([]model.Track, error) {
	var tracks []model.Track
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("added_at ASC").
		Find(&tracks).Error
	return tracks, err
}

func (r *gormTrackRepository) ListRoomPartnerTracks(ctx context.Context, roomID string, userID int64) ([]model.Track, error) {
	var room model.Room
	err := r.db.WithContext(ctx).Where("id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("room %s not found", roomID)
	}
	if err != nil {
		return nil, err
	}

	partnerID := room.OwnerID
	if partnerID == userID {
		if room.PartnerID == nil {
			return nil, nil
		}
		partnerID = *room.PartnerID
	}

	var tracks []model.Track
	err = r.db.WithContext(ctx).
		Where("user_id = ?", partnerID).
		Order("added_at ASC").
		Find(&tracks).Error
	return tracks, err
}

func (r *gormTrackRepository) SetFavorite(ctx context.Context, id string, userID int64, favorite bool) error {
	return r.db.WithContext(ctx).Model(&model.Track{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("favorite", favorite).Error
}

func (r *gormTrackRepository) Delete(ctx context.Context, id string, userID int64) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.Track{}).Error
}

// PlaylistFetcher adapts a TrackRepository to the playlist merge flow for a
// fixed user identity.
type PlaylistFetcher struct {
	tracks TrackRepository
	userID int64
}

// NewPlaylistFetcher builds a fetcher that resolves the partner side of a
// room relative to userID.
func NewPlaylistFetcher(tracks TrackRepository, userID int64) *PlaylistFetcher {
	return &PlaylistFetcher{tracks: tracks, userID: userID}
}

// FetchPartnerTracks implements playlist.Fetcher.
func (f *PlaylistFetcher) FetchPartnerTracks(ctx context.Context, roomID string) ([]model.Track, error) {
	return f.tracks.ListRoomPartnerTracks(ctx, roomID, f.userID)
}
