package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inkpost/apiserver/types"
)

// ArchivedPost is the snapshot written for a deleted post.
type ArchivedPost struct {
	Post       types.Post `json:"post"`
	ArchivedAt time.Time  `json:"archived_at"`
}

// PostArchive stores snapshots under posts/<owner>/<post>.json.
type PostArchive struct {
	storage *Storage
	now     func() time.Time
}

// NewPostArchive returns an archive backed by storage.
func NewPostArchive(storage *Storage) (*PostArchive, error) {
	if storage == nil {
		return nil, errors.New("storage is required")
	}
	return &PostArchive{storage: storage, now: time.Now}, nil
}

// ArchiveKey returns the object key for a post snapshot.
func ArchiveKey(post types.Post) string {
	return fmt.Sprintf("posts/%s/%s.json", post.OwnerID, post.ID)
}

// ArchivePost implements services.Archiver.
func (a *PostArchive) ArchivePost(ctx context.Context, post types.Post) error {
	return a.storage.PutJSON(ctx, ArchiveKey(post), ArchivedPost{Post: post, ArchivedAt: a.now().UTC()})
}

// Load reads back a snapshot. It wraps ErrObjectNotFound when the post was
// never archived.
func (a *PostArchive) Load(ctx context.Context, post types.Post) (ArchivedPost, error) {
	var archived ArchivedPost
	if err := a.storage.GetJSON(ctx, ArchiveKey(post), &archived); err != nil {
		return ArchivedPost{}, err
	}
	return archived, nil
}
