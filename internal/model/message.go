package model

import "time"

// MaxMessageLength is the cap on chat message content, counted in runes so a
// multi-byte character costs one unit, not three.
const MaxMessageLength = 150

// ChatMessage is a single message in the group feed.
//
// ID is assigned by the store (auto-increment) and is strictly monotonic,
// which is what makes it usable as a polling cursor: a client remembers the
// highest ID it has rendered and asks for everything above it.
//
// Messages are immutable after creation. SentAt is stamped in UTC by the
// service at insert time — never taken from the client.
//
// Username and AvatarPath are denormalized from the owning user when reading
// the feed, so the presentation layer doesn't need a second lookup per row.
type ChatMessage struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"userId"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sentAt"`
	Username   string    `json:"username,omitempty"`
	AvatarPath string    `json:"avatarPath,omitempty"`
}
