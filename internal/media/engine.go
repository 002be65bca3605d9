package media

import "context"

// JoinInfo contains what a call screen needs to attach to a media room.
type JoinInfo struct {
	URL      string `json:"url"`       // media server WebSocket URL
	Token    string `json:"token"`     // join token
	RoomName string `json:"room_name"` // media room name
	Identity string `json:"identity"`  // visitor identity in the room
}

// Engine abstracts the media backend for call engagements. Production
// deployments receive join credentials from the session backend and may run
// without an engine; the dev-mode engine mints its own.
type Engine interface {
	// ProvisionRoom reserves a media room for the engagement.
	// Returns the external room name.
	ProvisionRoom(ctx context.Context, engagementID string) (string, error)

	// CloseRoom releases the media room.
	CloseRoom(ctx context.Context, roomName string) error

	// JoinCredentials creates join credentials for the visitor.
	JoinCredentials(ctx context.Context, roomName, visitorID string) (*JoinInfo, error)
}
