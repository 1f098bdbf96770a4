package types

import (
	"time"

	"github.com/google/uuid"
)

// Post is a blog entry owned by exactly one user.
type Post struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`

	// OwnerID references the user who created the post. It never changes.
	OwnerID uuid.UUID `json:"owner_id" db:"owner_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PostWithOwner is a post joined with its owning user.
type PostWithOwner struct {
	Post
	Owner User `json:"owner"`
}

// PostEventType names a change to a post.
type PostEventType string

const (
	PostCreated PostEventType = "post.created"
	PostUpdated PostEventType = "post.updated"
	PostDeleted PostEventType = "post.deleted"
)

// PostEvent is published to the message queue after a post changes.
type PostEvent struct {
	Type       PostEventType `json:"type"`
	PostID     uuid.UUID     `json:"postId"`
	OwnerID    uuid.UUID     `json:"ownerId"`
	Title      string        `json:"title"`
	OccurredAt time.Time     `json:"occurredAt"`
}
