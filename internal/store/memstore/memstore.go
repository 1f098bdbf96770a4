// Package memstore is an in-memory implementation of the user and post
// repositories, used by tests that do not need Postgres.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/inkpost/apiserver/internal/store"
	"github.com/inkpost/apiserver/types"
)

// Store keeps users and posts in maps guarded by a single lock.
type Store struct {
	mu    sync.RWMutex
	users map[uuid.UUID]types.User
	posts map[uuid.UUID]types.Post
	seq   int64
	order map[uuid.UUID]int64
}

func New() *Store {
	return &Store{
		users: make(map[uuid.UUID]types.User),
		posts: make(map[uuid.UUID]types.Post),
		order: make(map[uuid.UUID]int64),
	}
}

// Users returns the store as a user repository.
func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

// Posts returns the store as a post repository.
func (s *Store) Posts() *PostRepository {
	return &PostRepository{s: s}
}

type UserRepository struct {
	s *Store
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, user := range r.s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}

	now := time.Now().UTC()
	user.ID = uuid.New()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID] = user
	return user, nil
}

type PostRepository struct {
	s *Store
}

func (r *PostRepository) Get(_ context.Context, id uuid.UUID) (types.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	post, ok := r.s.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	return post, nil
}

func (r *PostRepository) ListWithOwners(_ context.Context) ([]types.PostWithOwner, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	posts := make([]types.PostWithOwner, 0, len(r.s.posts))
	for _, post := range r.s.posts {
		owner, ok := r.s.users[post.OwnerID]
		if !ok {
			continue
		}
		posts = append(posts, types.PostWithOwner{Post: post, Owner: owner})
	}
	sort.Slice(posts, func(i, j int) bool {
		return r.s.order[posts[i].ID] < r.s.order[posts[j].ID]
	})
	return posts, nil
}

func (r *PostRepository) Create(_ context.Context, post types.Post) (types.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[post.OwnerID]; !ok {
		return types.Post{}, store.ErrUnknownOwner
	}

	now := time.Now().UTC()
	post.ID = uuid.New()
	post.CreatedAt = now
	post.UpdatedAt = now
	r.s.posts[post.ID] = post
	r.s.seq++
	r.s.order[post.ID] = r.s.seq
	return post, nil
}

func (r *PostRepository) Update(_ context.Context, id uuid.UUID, title, description string) (types.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	post, ok := r.s.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	post.Title = title
	post.Description = description
	post.UpdatedAt = time.Now().UTC()
	r.s.posts[id] = post
	return post, nil
}

func (r *PostRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.posts[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.posts, id)
	delete(r.s.order, id)
	return nil
}
