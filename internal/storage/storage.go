// Package storage is the durable key/value store a storefront client keeps
// its guest session, tokens and cached user in.
package storage

import "context"

// Storage reports a missing key as ok=false, never as an error.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Keys names the entries a client keeps in Storage.
type Keys struct {
	GuestSession string
	AccessToken  string
	RefreshToken string
	User         string
}

func DefaultKeys() Keys {
	return Keys{
		GuestSession: "guest_session_id",
		AccessToken:  "access_token",
		RefreshToken: "refresh_token",
		User:         "user",
	}
}
