package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/inkpost/apiserver/internal/apperr"
	"github.com/inkpost/apiserver/internal/schema"
	"github.com/inkpost/apiserver/internal/services"
	"github.com/inkpost/apiserver/types"
)

// PostHandler provides HTTP handlers for posts.
type PostHandler struct {
	postService *services.PostService
	validator   *schema.Validator
}

// NewPostHandler constructs a handler with the provided services.
func NewPostHandler(postService *services.PostService, validator *schema.Validator) *PostHandler {
	return &PostHandler{
		postService: postService,
		validator:   validator,
	}
}

// PostRouter registers post routes on the given router. Every route requires
// authentication.
func PostRouter(
	r chi.Router,
	postService *services.PostService,
	validator *schema.Validator,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewPostHandler(postService, validator)

	r.Use(authMiddleware)
	r.Post("/", handle(handler.CreatePost))
	r.Get("/", handle(handler.ListPosts))
	r.Route("/{postID}", func(r chi.Router) {
		r.Get("/", handle(handler.GetPost))
		r.Patch("/", handle(handler.UpdatePost))
		r.Delete("/", handle(handler.DeletePost))
	})
}

// CreatePost stores a new post owned by the caller.
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) error {
	var req PostRequest
	if err := h.validator.Decode(schema.CreateUpdatePost, r.Body, &req); err != nil {
		return err
	}

	ownerID, err := callerID(r.Context())
	if err != nil {
		return err
	}

	post, err := h.postService.Create(r.Context(), req.Title, req.Description, ownerID)
	if err != nil {
		// A token can outlive its user.
		return storeError(err)
	}

	writeJSON(w, http.StatusCreated, CreatePostResponse{
		Message: successMessage,
		Post:    newPostBody(post),
	})
	return nil
}

// ListPosts returns only the caller's own posts, each with its owner embedded.
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) error {
	ownerID, err := callerID(r.Context())
	if err != nil {
		return err
	}

	all, err := h.postService.GetAll(r.Context())
	if err != nil {
		return err
	}

	owned := make([]OwnedPostBody, 0, len(all))
	for _, post := range all {
		if post.Owner.ID != ownerID {
			continue
		}
		owned = append(owned, newOwnedPostBody(post))
	}

	writeJSON(w, http.StatusOK, PostListResponse{Posts: owned})
	return nil
}

// GetPost returns any post by id to any authenticated caller; unlike
// ListPosts it does not filter by owner.
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) error {
	post, err := h.loadPost(r)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, newPostBody(post))
	return nil
}

// UpdatePost replaces the title and description of a post the caller owns.
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) error {
	post, err := h.loadOwnedPost(r)
	if err != nil {
		return err
	}

	var req PostRequest
	if err := h.validator.Decode(schema.CreateUpdatePost, r.Body, &req); err != nil {
		return err
	}

	if _, ok, err := h.postService.Update(r.Context(), req.Title, req.Description, post.ID); err != nil {
		return storeError(err)
	} else if !ok {
		return postNotFound(post.ID.String())
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: successMessage})
	return nil
}

// DeletePost removes a post the caller owns.
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) error {
	post, err := h.loadOwnedPost(r)
	if err != nil {
		return err
	}

	if err := h.postService.Delete(r.Context(), post.ID); err != nil {
		return storeError(err)
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: successMessage})
	return nil
}

func (h *PostHandler) loadPost(r *http.Request) (types.Post, error) {
	id, err := postIDParam(r)
	if err != nil {
		return types.Post{}, err
	}

	post, ok, err := h.postService.GetByID(r.Context(), id)
	if err != nil {
		return types.Post{}, storeError(err)
	}
	if !ok {
		return types.Post{}, postNotFound(chi.URLParam(r, "postID"))
	}
	return post, nil
}

// loadOwnedPost loads the post named in the URL and rejects callers that do
// not own it.
func (h *PostHandler) loadOwnedPost(r *http.Request) (types.Post, error) {
	caller, err := callerID(r.Context())
	if err != nil {
		return types.Post{}, err
	}

	post, err := h.loadPost(r)
	if err != nil {
		return types.Post{}, err
	}

	if post.OwnerID != caller {
		return types.Post{}, apperr.Conflict("You are not post's owner.")
	}
	return post, nil
}

func postNotFound(id string) error {
	return apperr.NotFound(fmt.Sprintf("Post with %q id was not found.", id))
}

// PostRequest is the body accepted by create and update.
type PostRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PostBody is a post with its owner flattened to an id.
type PostBody struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	OwnerID     uuid.UUID `json:"ownerId"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}

// OwnerBody is the public view of a post's owner.
type OwnerBody struct {
	ID      uuid.UUID `json:"id"`
	Email   string    `json:"email"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// OwnedPostBody is a post with its owner embedded.
type OwnedPostBody struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Owner       OwnerBody `json:"owner"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}

// CreatePostResponse is returned by CreatePost.
type CreatePostResponse struct {
	Message string   `json:"message"`
	Post    PostBody `json:"post"`
}

// PostListResponse is returned by ListPosts.
type PostListResponse struct {
	Posts []OwnedPostBody `json:"posts"`
}

func newPostBody(post types.Post) PostBody {
	return PostBody{
		ID:          post.ID,
		Title:       post.Title,
		Description: post.Description,
		OwnerID:     post.OwnerID,
		Created:     post.CreatedAt,
		Updated:     post.UpdatedAt,
	}
}

func newOwnedPostBody(post types.PostWithOwner) OwnedPostBody {
	return OwnedPostBody{
		ID:          post.ID,
		Title:       post.Title,
		Description: post.Description,
		Owner: OwnerBody{
			ID:      post.Owner.ID,
			Email:   post.Owner.Email,
			Created: post.Owner.CreatedAt,
			Updated: post.Owner.UpdatedAt,
		},
		Created: post.CreatedAt,
		Updated: post.UpdatedAt,
	}
}
