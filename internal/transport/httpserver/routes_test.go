package httpserver_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"family-circle-go/internal/config"
	familydomain "family-circle-go/internal/domain/family"
	userdomain "family-circle-go/internal/domain/user"
	"family-circle-go/internal/metrics"
	"family-circle-go/internal/repository/inmemory"
	"family-circle-go/internal/storage/local"
	"family-circle-go/internal/transport/httpserver"
	"family-circle-go/internal/transport/httpserver/handler"
	authmw "family-circle-go/internal/transport/httpserver/middleware"
	"family-circle-go/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
}

type familyBody struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Image           *string  `json:"image"`
	Creator         string   `json:"creator"`
	Members         []string `json:"members"`
	PendingRequests []string `json:"pendingRequests"`
}

type requestBody struct {
	ID          string `json:"id"`
	RequestType string `json:"requestType"`
	User        string `json:"user"`
	Family      string `json:"family"`
	Status      string `json:"status"`
}

type pendingBody struct {
	ID          string `json:"id"`
	RequestType string `json:"requestType"`
	User        struct {
		ID string `json:"id"`
	} `json:"user"`
	Family struct {
		ID string `json:"id"`
	} `json:"family"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := logger.NewNop()
	store := inmemory.NewStore()
	blobs, err := local.New(t.TempDir(), "http://localhost/uploads")
	require.NoError(t, err)

	recorder := metrics.New()
	families := familydomain.NewService(store, blobs, log,
		familydomain.WithCache(inmemory.NewFamilyCache(), time.Minute),
		familydomain.WithRecorder(recorder),
	)
	users := userdomain.NewService(store)

	cfg := config.Config{CORSOrigins: []string{"http://localhost:3000"}}
	router := httpserver.NewRouter(httpserver.RouterDeps{
		Config:     cfg,
		Handlers:   handler.New(families, log, 1<<20),
		Auth:       authmw.NewAuthenticator(cfg.Auth, authmw.NewJWTVerifier(testSecret, ""), users, log),
		Logger:     log,
		Metrics:    recorder.Handler(),
		UploadsDir: blobs.Dir(),
	})

	return &testServer{t: t, handler: router}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	claims := authmw.Claims{
		FirstName: strings.ToUpper(userID[:1]) + userID[1:],
		LastName:  "Tester",
		Email:     userID + "@example.test",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(req *http.Request, userID string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(s.t, userID))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var body envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func (s *testServer) get(path, userID string) (*httptest.ResponseRecorder, envelope) {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil), userID)
}

func (s *testServer) postJSON(path, userID string, payload interface{}) (*httptest.ResponseRecorder, envelope) {
	raw, err := json.Marshal(payload)
	require.NoError(s.t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, userID)
}

func (s *testServer) postForm(path, userID string, fields map[string]string, contentType string) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(s.t, writer.WriteField(key, value))
	}
	if contentType != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="family.png"`)
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		require.NoError(s.t, err)
		_, err = part.Write([]byte("\x89PNG fake image"))
		require.NoError(s.t, err)
	}
	require.NoError(s.t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return s.do(req, userID)
}

func (s *testServer) createFamily(userID, name string) familyBody {
	s.t.Helper()
	rec, body := s.postForm("/api/v1/family/create-family", userID,
		map[string]string{"name": name, "description": "the " + name + " family"}, "image/png")
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	var family familyBody
	require.NoError(s.t, json.Unmarshal(body.Data, &family))
	return family
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var value T
	require.NoError(t, json.Unmarshal(raw, &value))
	return value
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	srv := newTestServer(t)

	rec, body := srv.get("/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)

	rec, _ = srv.get("/health", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = srv.get("/v1/family/get-users-family", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = srv.get("/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "family_circle_")
}

func TestFamilyRoutesRequireBearerToken(t *testing.T) {
	srv := newTestServer(t)

	rec, body := srv.get("/api/v1/family/get-users-family", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, body.Success)
	assert.Equal(t, http.StatusUnauthorized, body.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/family/get-users-family", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec, _ = srv.do(req, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateFamily(t *testing.T) {
	srv := newTestServer(t)

	family := srv.createFamily("alice", "Okafor")
	assert.Equal(t, "alice", family.Creator)
	assert.Equal(t, []string{"alice"}, family.Members)
	assert.Empty(t, family.PendingRequests)
	require.NotNil(t, family.Image)
	assert.True(t, strings.HasPrefix(*family.Image, "http://localhost/uploads/"))

	rec, body := srv.get("/api/v1/family/get-users-family", "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[struct {
		Items      []familyBody `json:"items"`
		TotalCount int64        `json:"totalCount"`
	}](t, body.Data)
	assert.Equal(t, int64(1), page.TotalCount)
	assert.Equal(t, family.ID, page.Items[0].ID)
}

func TestCreateFamilyRejectsUnsupportedImage(t *testing.T) {
	srv := newTestServer(t)

	rec, body := srv.postForm("/api/v1/family/create-family", "alice",
		map[string]string{"name": "Okafor", "description": "d"}, "image/gif")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Image must be of type jpg, jpeg or png", body.Message)

	rec, body = srv.postForm("/api/v1/family/create-family", "alice",
		map[string]string{"name": "Okafor"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "description is required", body.Message)
}

func TestJoinRequestFlow(t *testing.T) {
	srv := newTestServer(t)
	family := srv.createFamily("alice", "Okafor")

	rec, body := srv.get("/api/v1/family/request-to-join-family/"+family.ID, "bob")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	request := decode[requestBody](t, body.Data)
	assert.Equal(t, "user_request", request.RequestType)
	assert.Equal(t, "pending", request.Status)
	assert.Equal(t, "bob", request.User)

	rec, body = srv.get("/api/v1/family/list-pending-requests", "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[[]pendingBody](t, body.Data)
	require.Len(t, pending, 1)
	assert.Equal(t, "bob", pending[0].User.ID)
	assert.Equal(t, family.ID, pending[0].Family.ID)

	// Only the creator resolves join requests.
	rec, _ = srv.postJSON("/api/v1/family/accept-pending-requests", "bob",
		map[string]interface{}{"requestId": request.ID, "accepted": true})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = srv.postJSON("/api/v1/family/accept-pending-requests", "alice",
		map[string]interface{}{"requestId": request.ID, "accepted": "true"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[familyBody](t, body.Data)
	assert.ElementsMatch(t, []string{"alice", "bob"}, updated.Members)
	assert.Empty(t, updated.PendingRequests)

	rec, body = srv.postJSON("/api/v1/family/accept-pending-requests", "alice",
		map[string]interface{}{"requestId": request.ID, "accepted": true})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "request has been processed previously", body.Message)

	rec, body = srv.get(fmt.Sprintf("/api/v1/family/user-in-family/%s/%s", "bob", family.ID), "alice")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User found", body.Message)

	rec, body = srv.get("/api/v1/family/get-family-details/"+family.ID, "bob")
	require.Equal(t, http.StatusOK, rec.Code)
	details := decode[struct {
		Members []struct {
			ID        string `json:"id"`
			FirstName string `json:"firstName"`
		} `json:"members"`
	}](t, body.Data)
	assert.Len(t, details.Members, 2)
}

func TestInvitationFlow(t *testing.T) {
	srv := newTestServer(t)
	family := srv.createFamily("alice", "Okafor")
	srv.get("/api/v1/family/get-users-family", "bob")
	srv.get("/api/v1/family/get-users-family", "carol")

	rec, _ := srv.postJSON("/api/v1/family/add-family-members", "carol",
		map[string]interface{}{"familyId": family.ID, "usersToAdd": []string{"bob"}})
	assert.Equal(t, http.StatusConflict, rec.Code, "non-members cannot invite")

	rec, body := srv.postJSON("/api/v1/family/add-family-members", "alice",
		map[string]interface{}{"familyId": family.ID, "usersToAdd": []string{"bob", "alice", "bob"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	invited := decode[familyBody](t, body.Data)
	require.Len(t, invited.PendingRequests, 1)

	rec, body = srv.get("/api/v1/family/list-pending-requests", "bob")
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[[]pendingBody](t, body.Data)
	require.Len(t, pending, 1)
	assert.Equal(t, "family_invitation", pending[0].RequestType)

	// Invitations are resolved by the invitee only.
	rec, _ = srv.postJSON("/api/v1/family/accept-pending-requests", "alice",
		map[string]interface{}{"requestId": pending[0].ID, "accepted": true})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = srv.postJSON("/api/v1/family/accept-pending-requests", "bob",
		map[string]interface{}{"requestId": pending[0].ID, "accepted": "false"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	declined := decode[familyBody](t, body.Data)
	assert.Equal(t, []string{"alice"}, declined.Members)
	assert.Empty(t, declined.PendingRequests)

	rec, body = srv.get(fmt.Sprintf("/api/v1/family/user-in-family/%s/%s", "bob", family.ID), "alice")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "requested user is not a member of this family: bob", body.Message)

	rec, body = srv.get(fmt.Sprintf("/api/v1/family/user-in-family/%s/%s", "alice", family.ID), "bob")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "you are not a member of this family", body.Message)
}

func TestAddFamilyMembersRequiresCreator(t *testing.T) {
	srv := newTestServer(t)
	family := srv.createFamily("alice", "Okafor")

	_, body := srv.get("/api/v1/family/request-to-join-family/"+family.ID, "bob")
	request := decode[requestBody](t, body.Data)
	rec, _ := srv.postJSON("/api/v1/family/accept-pending-requests", "alice",
		map[string]interface{}{"requestId": request.ID, "accepted": true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = srv.postJSON("/api/v1/family/add-family-members", "bob",
		map[string]interface{}{"familyId": family.ID, "usersToAdd": []string{"carol"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestEditFamilyDetails(t *testing.T) {
	srv := newTestServer(t)
	family := srv.createFamily("alice", "Okafor")

	rec, body := srv.postJSON("/api/v1/family/update-family-details", "alice",
		map[string]interface{}{"familyId": family.ID, "name": "Okafor-Adeyemi"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decode[familyBody](t, body.Data)
	assert.Equal(t, "Okafor-Adeyemi", edited.Name)
	assert.Equal(t, family.Description, edited.Description)

	rec, body = srv.postForm("/api/v1/family/update-family-details", "alice",
		map[string]string{"familyId": family.ID, "description": "new description"}, "image/jpeg")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited = decode[familyBody](t, body.Data)
	assert.Equal(t, "new description", edited.Description)
	require.NotNil(t, edited.Image)
	assert.NotEqual(t, *family.Image, *edited.Image)

	rec, _ = srv.postJSON("/api/v1/family/update-family-details", "mallory",
		map[string]interface{}{"familyId": family.ID, "name": "x"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = srv.postJSON("/api/v1/family/update-family-details", "alice",
		map[string]interface{}{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEndpointsPaginate(t *testing.T) {
	srv := newTestServer(t)
	for _, name := range []string{"Okafor", "Adeyemi", "Okonkwo"} {
		srv.createFamily("alice", name)
	}

	rec, body := srv.get("/api/v1/family/get-family-list-user-can-join?search=ok&page=1&limit=1", "bob")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[struct {
		Items       []familyBody `json:"items"`
		TotalCount  int64        `json:"totalCount"`
		TotalPages  int          `json:"totalPages"`
		HasNextPage bool         `json:"hasNextPage"`
	}](t, body.Data)
	assert.Equal(t, int64(2), page.TotalCount)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.TotalPages)
	assert.True(t, page.HasNextPage)

	rec, _ = srv.get("/api/v1/family/get-family-members", "alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = srv.get("/api/v1/family/get-users-family?page=abc", "alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadedImagesAreServed(t *testing.T) {
	srv := newTestServer(t)
	family := srv.createFamily("alice", "Okafor")
	require.NotNil(t, family.Image)

	path := strings.TrimPrefix(*family.Image, "http://localhost")
	rec, _ := srv.get(path, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "\x89PNG fake image", rec.Body.String())
}
