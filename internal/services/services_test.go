package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/inkpost/apiserver/internal/store"
	"github.com/inkpost/apiserver/internal/store/memstore"
	"github.com/inkpost/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []types.PostEvent
	err    error
}

func (p *recordingPublisher) PublishPostEvent(_ context.Context, event types.PostEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) eventTypes() []types.PostEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.PostEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingArchiver struct {
	archived []types.Post
	err      error
}

func (a *recordingArchiver) ArchivePost(_ context.Context, post types.Post) error {
	a.archived = append(a.archived, post)
	return a.err
}

func TestUserServiceFindByEmail(t *testing.T) {
	ctx := context.Background()
	users := NewUserService(memstore.New().Users())

	_, ok, err := users.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.False(t, ok)

	created, err := users.Create(ctx, "a@b.com", "hash")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)

	found, ok, err := users.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "hash", found.PasswordHash)
}

func TestPostServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	users := NewUserService(mem.Users())
	events := &recordingPublisher{}
	archive := &recordingArchiver{}
	posts := NewPostService(mem.Posts(), WithEventPublisher(events), WithArchiver(archive))

	owner, err := users.Create(ctx, "owner@example.com", "hash")
	require.NoError(t, err)

	post, err := posts.Create(ctx, "Title", "Body", owner.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, post.OwnerID)

	fetched, ok, err := posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Title", fetched.Title)

	all, err := posts.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "owner@example.com", all[0].Owner.Email)

	updated, ok, err := posts.Update(ctx, "New title", "New body", post.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, owner.ID, updated.OwnerID)

	require.NoError(t, posts.Delete(ctx, post.ID))
	_, ok, err = posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []types.PostEventType{types.PostCreated, types.PostUpdated, types.PostDeleted}, events.eventTypes())
	require.Len(t, archive.archived, 1)
	assert.Equal(t, "New title", archive.archived[0].Title)
}

func TestPostServiceMissingPost(t *testing.T) {
	ctx := context.Background()
	posts := NewPostService(memstore.New().Posts())

	_, ok, err := posts.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = posts.Update(ctx, "t", "d", uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, posts.Delete(ctx, uuid.New()))
}

func TestPostServiceCreateUnknownOwner(t *testing.T) {
	events := &recordingPublisher{}
	posts := NewPostService(memstore.New().Posts(), WithEventPublisher(events))

	_, err := posts.Create(context.Background(), "t", "d", uuid.New())
	assert.ErrorIs(t, err, store.ErrUnknownOwner)
	assert.Empty(t, events.eventTypes())
}

func TestPostServiceSideEffectFailuresDoNotFailRequests(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	owner, err := NewUserService(mem.Users()).Create(ctx, "owner@example.com", "hash")
	require.NoError(t, err)

	events := &recordingPublisher{err: errors.New("broker down")}
	archive := &recordingArchiver{err: errors.New("bucket gone")}
	posts := NewPostService(mem.Posts(), WithEventPublisher(events), WithArchiver(archive))

	post, err := posts.Create(ctx, "Title", "Body", owner.ID)
	require.NoError(t, err)
	require.NoError(t, posts.Delete(ctx, post.ID))

	_, ok, err := posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
