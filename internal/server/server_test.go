package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/inkpost/apiserver/internal/auth"
	"github.com/inkpost/apiserver/internal/schema"
	"github.com/inkpost/apiserver/internal/store/memstore"
	"github.com/inkpost/apiserver/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

const testPassword = "Abc123!@"

type capturedEvents struct {
	mu     sync.Mutex
	events []types.PostEvent
}

func (c *capturedEvents) PublishPostEvent(_ context.Context, event types.PostEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

type APITestSuite struct {
	suite.Suite
	srv    *httptest.Server
	tokens *auth.TokenService
	events *capturedEvents
}

func (s *APITestSuite) SetupTest() {
	tokens, err := auth.NewTokenService("suite-secret")
	s.Require().NoError(err)
	validator, err := schema.New()
	s.Require().NoError(err)

	mem := memstore.New()
	s.tokens = tokens
	s.events = &capturedEvents{}
	s.srv = httptest.NewServer(NewRouter(Deps{
		Users:     mem.Users(),
		Posts:     mem.Posts(),
		Tokens:    tokens,
		Validator: validator,
		Events:    s.events,
		Logger:    zerolog.Nop(),
	}))
}

func (s *APITestSuite) TearDownTest() {
	s.srv.Close()
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func TestWriteTimeoutOutlastsRequestTimeout(t *testing.T) {
	srv := newHTTPServer(8080, http.NotFoundHandler())

	assert.Equal(t, ":8080", srv.Addr)
	assert.Greater(t, srv.WriteTimeout, requestTimeout)
}

func (s *APITestSuite) do(method, path, token string, body any) (int, map[string]any) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var decoded map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func (s *APITestSuite) register(email string) string {
	status, body := s.do(http.MethodPost, "/register", "", map[string]string{"email": email, "password": testPassword})
	s.Require().Equal(http.StatusCreated, status, body)
	return body["body"].(map[string]any)["userId"].(string)
}

func (s *APITestSuite) login(email string) string {
	status, body := s.do(http.MethodPost, "/login", "", map[string]string{"email": email, "password": testPassword})
	s.Require().Equal(http.StatusOK, status, body)
	return body["token"].(string)
}

func (s *APITestSuite) createPost(token, title string) string {
	status, body := s.do(http.MethodPost, "/posts", token, map[string]string{"title": title, "description": title + " body"})
	s.Require().Equal(http.StatusCreated, status, body)
	return body["post"].(map[string]any)["id"].(string)
}

func (s *APITestSuite) assertError(status int, body map[string]any, wantStatus int, wantMessage string) {
	s.Equal(wantStatus, status)
	s.Equal(false, body["success"])
	s.Equal(wantMessage, body["message"])
}

func (s *APITestSuite) TestHealthz() {
	status, body := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, status)
	s.Equal("ok", body["status"])
}

func (s *APITestSuite) TestRegisterThenLoginYieldsVerifiableToken() {
	userID := s.register("a@b.com")

	status, body := s.do(http.MethodPost, "/register", "", map[string]string{"email": "fresh@b.com", "password": testPassword})
	s.Equal(http.StatusCreated, status)
	s.Equal("success", body["message"])
	created := body["body"].(map[string]any)
	s.Equal("fresh@b.com", created["email"])
	s.NotEmpty(created["created"])
	s.NotContains(created, "password")

	identity, err := s.tokens.Verify(s.login("a@b.com"))
	s.Require().NoError(err)
	s.Equal(userID, identity.ID)
}

func (s *APITestSuite) TestRegisterDuplicateEmail() {
	s.register("a@b.com")

	status, body := s.do(http.MethodPost, "/register", "", map[string]string{"email": "a@b.com", "password": testPassword})
	s.assertError(status, body, http.StatusUnprocessableEntity, "User already exists.")
}

func (s *APITestSuite) TestRegisterFieldValidation() {
	status, body := s.do(http.MethodPost, "/register", "", map[string]string{"email": "not-an-email", "password": testPassword})
	s.assertError(status, body, http.StatusBadRequest, "Email is incorrect.")

	status, body = s.do(http.MethodPost, "/register", "", map[string]string{"email": "weak@b.com", "password": "abc"})
	s.assertError(status, body, http.StatusBadRequest, "Password too weak.")

	status, body = s.do(http.MethodPost, "/register", "", map[string]string{"email": "long@b.com", "password": testPassword + strings.Repeat("x", 70)})
	s.assertError(status, body, http.StatusBadRequest, "Password too weak.")

	status, body = s.do(http.MethodPost, "/register", "", map[string]string{"email": "", "password": testPassword})
	s.assertError(status, body, http.StatusBadRequest, "Email not specified.")

	status, body = s.do(http.MethodPost, "/register", "", map[string]string{"email": "empty@b.com", "password": ""})
	s.assertError(status, body, http.StatusBadRequest, "Password not specified.")
}

func (s *APITestSuite) TestRegisterSchemaValidation() {
	status, body := s.do(http.MethodPost, "/register", "", map[string]any{"email": "a@b.com"})
	s.Equal(http.StatusBadRequest, status)
	s.Equal(false, body["success"])
	s.Contains(body["message"], "password")

	status, body = s.do(http.MethodPost, "/register", "", map[string]any{"email": 12, "password": testPassword})
	s.Equal(http.StatusBadRequest, status)
	s.Contains(body["message"], "email")

	status, body = s.do(http.MethodPost, "/register", "", "[]")
	s.assertError(status, body, http.StatusBadRequest, "Invalid JSON body.")

	status, body = s.do(http.MethodPost, "/register", "", `{"email":"a@b.com","password":"`+testPassword+`"} {"email":"c@d.com"}`)
	s.assertError(status, body, http.StatusBadRequest, "Invalid JSON body.")
}

func (s *APITestSuite) TestOversizedBodyIsRejected() {
	payload := `{"email":"big@b.com","password":"` + strings.Repeat("x", maxBodyBytes) + `"}`

	status, body := s.do(http.MethodPost, "/register", "", payload)
	s.assertError(status, body, http.StatusRequestEntityTooLarge, "Request entity too large.")
}

func (s *APITestSuite) TestLoginFailures() {
	s.register("a@b.com")

	status, body := s.do(http.MethodPost, "/login", "", map[string]string{"email": "a@b.com", "password": "Wrong123!@"})
	s.assertError(status, body, http.StatusUnprocessableEntity, "Password is invalid.")

	status, body = s.do(http.MethodPost, "/login", "", map[string]string{"email": "nobody@b.com", "password": testPassword})
	s.assertError(status, body, http.StatusUnprocessableEntity, "User was not found.")
}

func (s *APITestSuite) TestPostsRequireToken() {
	status, body := s.do(http.MethodGet, "/posts", "", nil)
	s.assertError(status, body, http.StatusForbidden, "No token provided.")

	status, body = s.do(http.MethodPost, "/posts", "", map[string]string{"title": "t", "description": "d"})
	s.assertError(status, body, http.StatusForbidden, "No token provided.")

	status, body = s.do(http.MethodGet, "/posts", "garbage", nil)
	s.assertError(status, body, http.StatusForbidden, "Forbidden")
}

func (s *APITestSuite) TestExpiredTokenIsForbidden() {
	userID := s.register("a@b.com")
	past, err := auth.NewTokenService("suite-secret", auth.WithClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}))
	s.Require().NoError(err)
	expired, err := past.Issue(userID)
	s.Require().NoError(err)

	status, body := s.do(http.MethodGet, "/posts", expired, nil)
	s.assertError(status, body, http.StatusForbidden, "Forbidden")
}

func (s *APITestSuite) TestCreatePost() {
	userID := s.register("a@b.com")
	token := s.login("a@b.com")

	status, body := s.do(http.MethodPost, "/posts", token, map[string]string{
		"title":       "Hello",
		"description": "World",
		"ownerId":     uuid.NewString(),
	})
	s.Require().Equal(http.StatusCreated, status)
	s.Equal("success", body["message"])
	post := body["post"].(map[string]any)
	s.Equal("Hello", post["title"])
	s.Equal("World", post["description"])
	s.Equal(userID, post["ownerId"])
	s.NotEmpty(post["id"])
	s.NotEmpty(post["created"])
	s.NotEmpty(post["updated"])

	status, body = s.do(http.MethodPost, "/posts", token, map[string]string{"title": "", "description": "x"})
	s.Equal(http.StatusBadRequest, status)
	s.Contains(body["message"], "title")
}

func (s *APITestSuite) TestListReturnsOnlyOwnPostsWithOwner() {
	s.register("a@b.com")
	s.register("c@d.com")
	tokenA := s.login("a@b.com")
	tokenB := s.login("c@d.com")

	idA := s.createPost(tokenA, "from A")
	s.createPost(tokenB, "from B")

	status, body := s.do(http.MethodGet, "/posts", tokenA, nil)
	s.Require().Equal(http.StatusOK, status)
	posts := body["posts"].([]any)
	s.Require().Len(posts, 1)
	post := posts[0].(map[string]any)
	s.Equal(idA, post["id"])
	s.Equal("from A", post["title"])
	owner := post["owner"].(map[string]any)
	s.Equal("a@b.com", owner["email"])
	s.NotEmpty(owner["id"])
	s.NotContains(post, "ownerId")
}

func (s *APITestSuite) TestListEmpty() {
	s.register("a@b.com")
	status, body := s.do(http.MethodGet, "/posts", s.login("a@b.com"), nil)
	s.Equal(http.StatusOK, status)
	s.Equal([]any{}, body["posts"])
}

func (s *APITestSuite) TestGetByIDIsNotOwnerFiltered() {
	ownerID := s.register("a@b.com")
	s.register("c@d.com")
	postID := s.createPost(s.login("a@b.com"), "shared")

	status, body := s.do(http.MethodGet, "/posts/"+postID, s.login("c@d.com"), nil)
	s.Require().Equal(http.StatusOK, status)
	s.Equal(postID, body["id"])
	s.Equal("shared", body["title"])
	s.Equal(ownerID, body["ownerId"])
	s.NotContains(body, "owner")
}

func (s *APITestSuite) TestGetByIDNotFound() {
	s.register("a@b.com")
	token := s.login("a@b.com")

	status, body := s.do(http.MethodGet, "/posts/not-a-valid-id", token, nil)
	s.assertError(status, body, http.StatusNotFound, "Not defined.")

	missing := uuid.NewString()
	status, body = s.do(http.MethodGet, "/posts/"+missing, token, nil)
	s.assertError(status, body, http.StatusNotFound, fmt.Sprintf("Post with %q id was not found.", missing))
}

func (s *APITestSuite) TestUpdateByOwner() {
	s.register("a@b.com")
	token := s.login("a@b.com")
	postID := s.createPost(token, "before")

	status, body := s.do(http.MethodPatch, "/posts/"+postID, token, map[string]string{"title": "after", "description": "changed"})
	s.Require().Equal(http.StatusOK, status)
	s.Equal(map[string]any{"message": "success"}, body)

	status, body = s.do(http.MethodGet, "/posts/"+postID, token, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Equal("after", body["title"])
	s.Equal("changed", body["description"])
}

func (s *APITestSuite) TestUpdateByNonOwner() {
	s.register("a@b.com")
	s.register("c@d.com")
	postID := s.createPost(s.login("a@b.com"), "mine")
	tokenB := s.login("c@d.com")

	status, body := s.do(http.MethodPatch, "/posts/"+postID, tokenB, map[string]string{"title": "stolen", "description": "x"})
	s.assertError(status, body, http.StatusUnprocessableEntity, "You are not post's owner.")

	status, body = s.do(http.MethodPatch, "/posts/"+postID, tokenB, map[string]any{"title": 1})
	s.assertError(status, body, http.StatusUnprocessableEntity, "You are not post's owner.")
}

// The ownership check targets the post named in the URL, not whichever post
// happens to come first in the full listing.
func (s *APITestSuite) TestUpdateChecksTargetPostNotFirstPost() {
	s.register("b@b.com")
	s.register("a@b.com")
	tokenB := s.login("b@b.com")
	tokenA := s.login("a@b.com")

	s.createPost(tokenB, "first post overall")
	postA := s.createPost(tokenA, "A's post")

	status, body := s.do(http.MethodPatch, "/posts/"+postA, tokenB, map[string]string{"title": "hijack", "description": "x"})
	s.assertError(status, body, http.StatusUnprocessableEntity, "You are not post's owner.")

	status, body = s.do(http.MethodPatch, "/posts/"+postA, tokenA, map[string]string{"title": "edited", "description": "x"})
	s.Equal(http.StatusOK, status, body)
}

func (s *APITestSuite) TestUpdateMissingPost() {
	s.register("a@b.com")
	token := s.login("a@b.com")

	status, body := s.do(http.MethodPatch, "/posts/"+uuid.NewString(), token, map[string]string{"title": "t", "description": "d"})
	s.Equal(http.StatusNotFound, status)
	s.Equal(false, body["success"])

	status, body = s.do(http.MethodPatch, "/posts/123", token, map[string]string{"title": "t", "description": "d"})
	s.assertError(status, body, http.StatusNotFound, "Not defined.")
}

func (s *APITestSuite) TestUpdateInvalidPayloadByOwner() {
	s.register("a@b.com")
	token := s.login("a@b.com")
	postID := s.createPost(token, "before")

	status, body := s.do(http.MethodPatch, "/posts/"+postID, token, map[string]string{"title": "only title"})
	s.Equal(http.StatusBadRequest, status)
	s.Contains(body["message"], "description")
}

func (s *APITestSuite) TestDelete() {
	s.register("a@b.com")
	s.register("c@d.com")
	tokenA := s.login("a@b.com")
	tokenB := s.login("c@d.com")
	postID := s.createPost(tokenA, "doomed")

	status, body := s.do(http.MethodDelete, "/posts/"+postID, tokenB, nil)
	s.assertError(status, body, http.StatusUnprocessableEntity, "You are not post's owner.")

	status, body = s.do(http.MethodDelete, "/posts/"+postID, tokenA, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Equal(map[string]any{"message": "success"}, body)

	status, body = s.do(http.MethodDelete, "/posts/"+postID, tokenA, nil)
	s.assertError(status, body, http.StatusNotFound, fmt.Sprintf("Post with %q id was not found.", postID))

	status, body = s.do(http.MethodGet, "/posts/"+postID, tokenA, nil)
	s.Equal(http.StatusNotFound, status)
}

func (s *APITestSuite) TestTokenForDeletedSubject() {
	token, err := s.tokens.Issue("")
	s.Require().NoError(err)

	status, body := s.do(http.MethodGet, "/posts", token, nil)
	s.assertError(status, body, http.StatusUnprocessableEntity, "User was not defined.")
}

func (s *APITestSuite) TestCreatePostForUnknownUser() {
	token, err := s.tokens.Issue(uuid.NewString())
	s.Require().NoError(err)

	status, body := s.do(http.MethodPost, "/posts", token, map[string]string{"title": "orphan", "description": "d"})
	s.assertError(status, body, http.StatusUnprocessableEntity, "User was not defined.")

	s.events.mu.Lock()
	defer s.events.mu.Unlock()
	s.Empty(s.events.events)
}

func (s *APITestSuite) TestPostEventsArePublished() {
	s.register("a@b.com")
	token := s.login("a@b.com")
	postID := s.createPost(token, "evented")

	status, _ := s.do(http.MethodPatch, "/posts/"+postID, token, map[string]string{"title": "t", "description": "d"})
	s.Require().Equal(http.StatusOK, status)
	status, _ = s.do(http.MethodDelete, "/posts/"+postID, token, nil)
	s.Require().Equal(http.StatusOK, status)

	s.events.mu.Lock()
	defer s.events.mu.Unlock()
	s.Require().Len(s.events.events, 3)
	s.Equal(types.PostCreated, s.events.events[0].Type)
	s.Equal(types.PostUpdated, s.events.events[1].Type)
	s.Equal(types.PostDeleted, s.events.events[2].Type)
	s.Equal(postID, s.events.events[2].PostID.String())
}
