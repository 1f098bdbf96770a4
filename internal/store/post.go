package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/inkpost/apiserver/types"
)

// PostRepository handles persistence for posts.
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Get(ctx context.Context, id uuid.UUID) (types.Post, error) {
	const query = `
		SELECT id, title, description, owner_id, created_at, updated_at
		FROM posts
		WHERE id = $1`
	var post types.Post
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&post.ID,
		&post.Title,
		&post.Description,
		&post.OwnerID,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, classify(err)
	}
	return post, nil
}

// ListWithOwners returns every post joined with its owner, oldest first.
func (r *PostRepository) ListWithOwners(ctx context.Context) ([]types.PostWithOwner, error) {
	const query = `
		SELECT p.id, p.title, p.description, p.owner_id, p.created_at, p.updated_at,
		       u.id, u.email, u.created_at, u.updated_at
		FROM posts p
		JOIN users u ON u.id = p.owner_id
		ORDER BY p.created_at, p.id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]types.PostWithOwner, 0)
	for rows.Next() {
		var post types.PostWithOwner
		if err := rows.Scan(
			&post.ID,
			&post.Title,
			&post.Description,
			&post.OwnerID,
			&post.CreatedAt,
			&post.UpdatedAt,
			&post.Owner.ID,
			&post.Owner.Email,
			&post.Owner.CreatedAt,
			&post.Owner.UpdatedAt,
		); err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	now := time.Now().UTC()
	post.ID = uuid.New()
	post.CreatedAt = now
	post.UpdatedAt = now

	const query = `
		INSERT INTO posts (id, title, description, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		post.ID,
		post.Title,
		post.Description,
		post.OwnerID,
		post.CreatedAt,
		post.UpdatedAt,
	); err != nil {
		return types.Post{}, classify(err)
	}
	return post, nil
}

// Update overwrites title and description. The owner column is never touched.
func (r *PostRepository) Update(ctx context.Context, id uuid.UUID, title, description string) (types.Post, error) {
	const query = `
		UPDATE posts
		SET title = $1,
			description = $2,
			updated_at = $3
		WHERE id = $4
		RETURNING id, title, description, owner_id, created_at, updated_at`
	var post types.Post
	err := r.db.QueryRowContext(ctx, query, title, description, time.Now().UTC(), id).Scan(
		&post.ID,
		&post.Title,
		&post.Description,
		&post.OwnerID,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, classify(err)
	}
	return post, nil
}

func (r *PostRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM posts WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return classify(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
