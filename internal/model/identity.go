package model

import "time"

// UserIdentity. One human identity, stable across workspaces.
// Created at registration ; never deleted by this subsystem.
type UserIdentity struct {
	// Stable user identifier
	Id string
	// Display name
	Name string
	// Contact fields
	Email string
	Phone string
	// Avatar image URL, if any
	AvatarURL string
	// Preference block
	Prefs Preferences
	// Registration date
	CreatedAt time.Time
	// Last profile mutation date
	UpdatedAt time.Time
}

// Preferences of a UserIdentity.
type Preferences struct {
	// UI theme name
	Theme string
	// BCP-47 locale tag
	Locale string
	// Preferred default context pointer, if set
	DefaultContextId string
	// Notification toggles
	NotifyEmail    bool
	NotifyWhatsApp bool
}
