package model

import "errors"

// Error taxonomy for the sync core. None of these are fatal: every failure
// leaves the client in its previous valid state.
var (
	// ErrAuthRequired is returned when a sync or chat action is attempted
	// without an established identity. No state is mutated.
	ErrAuthRequired = errors.New("authentication required")

	// ErrRoomCreateFailed is returned when a pairing room could not be created.
	ErrRoomCreateFailed = errors.New("room creation failed")

	// ErrPlaylistFetchFailed is returned when the partner's track collection
	// could not be fetched for a merge. The local collection is unaffected.
	ErrPlaylistFetchFailed = errors.New("playlist fetch failed")

	// ErrMessageSendFailed is returned when a chat publish fails. The
	// optimistic local append is retracted first.
	ErrMessageSendFailed = errors.New("message send failed")

	// ErrChannelSubscribeFailed is returned when the room channel could not be
	// attached; the client degrades to a disconnected state and may retry.
	ErrChannelSubscribeFailed = errors.New("channel subscribe failed")
)
