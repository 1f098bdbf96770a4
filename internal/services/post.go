package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/inkpost/apiserver/internal/store"
	"github.com/inkpost/apiserver/types"
	"github.com/rs/zerolog"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	Get(ctx context.Context, id uuid.UUID) (types.Post, error)
	ListWithOwners(ctx context.Context) ([]types.PostWithOwner, error)
	Create(ctx context.Context, post types.Post) (types.Post, error)
	Update(ctx context.Context, id uuid.UUID, title, description string) (types.Post, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// EventPublisher receives a notification after a post changes.
type EventPublisher interface {
	PublishPostEvent(ctx context.Context, event types.PostEvent) error
}

// Archiver keeps a copy of a post before it is deleted.
type Archiver interface {
	ArchivePost(ctx context.Context, post types.Post) error
}

// PostService encapsulates post use-cases. It does not check ownership;
// callers decide who may change a post.
type PostService struct {
	repo    PostRepository
	events  EventPublisher
	archive Archiver
	logger  zerolog.Logger
	now     func() time.Time
}

// PostServiceOption configures optional PostService collaborators.
type PostServiceOption func(*PostService)

// WithEventPublisher publishes an event after each create, update and delete.
func WithEventPublisher(events EventPublisher) PostServiceOption {
	return func(s *PostService) {
		s.events = events
	}
}

// WithArchiver snapshots posts before they are deleted.
func WithArchiver(archive Archiver) PostServiceOption {
	return func(s *PostService) {
		s.archive = archive
	}
}

// WithLogger sets the logger used for best-effort side effects.
func WithLogger(logger zerolog.Logger) PostServiceOption {
	return func(s *PostService) {
		s.logger = logger
	}
}

// NewPostService constructs a PostService backed by repo.
func NewPostService(repo PostRepository, opts ...PostServiceOption) *PostService {
	s := &PostService{
		repo:   repo,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new post. The error matches store.ErrUnknownOwner when
// ownerID does not name an existing user.
func (s *PostService) Create(ctx context.Context, title, description string, ownerID uuid.UUID) (types.Post, error) {
	post, err := s.repo.Create(ctx, types.Post{
		Title:       title,
		Description: description,
		OwnerID:     ownerID,
	})
	if err != nil {
		return types.Post{}, err
	}
	s.publish(ctx, types.PostCreated, post)
	return post, nil
}

// GetByID reports false when no post has the given id.
func (s *PostService) GetByID(ctx context.Context, id uuid.UUID) (types.Post, bool, error) {
	return found(s.repo.Get(ctx, id))
}

// GetAll returns every post with its owner resolved.
func (s *PostService) GetAll(ctx context.Context) ([]types.PostWithOwner, error) {
	return s.repo.ListWithOwners(ctx)
}

// Update overwrites title and description of the post with the given id.
func (s *PostService) Update(ctx context.Context, title, description string, id uuid.UUID) (types.Post, bool, error) {
	post, ok, err := found(s.repo.Update(ctx, id, title, description))
	if err != nil || !ok {
		return post, ok, err
	}
	s.publish(ctx, types.PostUpdated, post)
	return post, true, nil
}

// Delete removes the post. Deleting a post that is already gone is not an error.
func (s *PostService) Delete(ctx context.Context, id uuid.UUID) error {
	post, ok, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if s.archive != nil {
		if err := s.archive.ArchivePost(ctx, post); err != nil {
			s.logger.Warn().Err(err).Stringer("post_id", post.ID).Msg("failed to archive post")
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	s.publish(ctx, types.PostDeleted, post)
	return nil
}

func (s *PostService) publish(ctx context.Context, eventType types.PostEventType, post types.Post) {
	if s.events == nil {
		return
	}
	event := types.PostEvent{
		Type:       eventType,
		PostID:     post.ID,
		OwnerID:    post.OwnerID,
		Title:      post.Title,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.PublishPostEvent(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event", string(eventType)).Stringer("post_id", post.ID).Msg("failed to publish post event")
	}
}
