package livekit

import (
	"context"
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"

	"github.com/engageworks/engage-go/internal/media"
)

// Engine implements media.Engine against a self-hosted LiveKit instance.
// Intended for development setups where the session backend does not supply
// join credentials of its own.
type Engine struct {
	apiKey    string
	apiSecret string
	wsURL     string
}

// New creates a LiveKit-backed media engine.
func New(apiKey, apiSecret, wsURL string) *Engine {
	return &Engine{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		wsURL:     wsURL,
	}
}

// ProvisionRoom reserves a media room. LiveKit creates rooms on demand when
// the first participant joins, so this only derives the room name.
func (e *Engine) ProvisionRoom(_ context.Context, engagementID string) (string, error) {
	return fmt.Sprintf("engage-%s", engagementID), nil
}

// CloseRoom releases the media room. Dev rooms auto-expire when empty.
func (e *Engine) CloseRoom(_ context.Context, _ string) error {
	return nil
}

// JoinCredentials creates join credentials for the visitor.
func (e *Engine) JoinCredentials(_ context.Context, roomName, visitorID string) (*media.JoinInfo, error) {
	if roomName == "" {
		return nil, fmt.Errorf("empty room name")
	}

	identity := fmt.Sprintf("visitor-%s", visitorID)

	at := auth.NewAccessToken(e.apiKey, e.apiSecret)
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	at.AddGrant(grant).
		SetIdentity(identity).
		SetName(visitorID).
		SetValidFor(time.Hour)

	token, err := at.ToJWT()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &media.JoinInfo{
		URL:      e.wsURL,
		Token:    token,
		RoomName: roomName,
		Identity: identity,
	}, nil
}

var _ media.Engine = (*Engine)(nil)
