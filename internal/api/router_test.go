package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/progdesk/comms/internal/app"
	iauth "github.com/progdesk/comms/internal/auth"
	"github.com/progdesk/comms/internal/database/testutil"
	"github.com/progdesk/comms/internal/identity"
	"github.com/progdesk/comms/internal/models"
)

type routerFixture struct {
	router *gin.Engine
	jwt    *iauth.JWTService
	db     *gorm.DB
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret"})
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Auth.JWT.Secret = "test-secret"

	router, err := NewRouter(db, jwt, cfg)
	require.NoError(t, err)

	return &routerFixture{router: router, jwt: jwt, db: db}
}

func (f *routerFixture) seedUser(t *testing.T, id, name, role string) {
	t.Helper()
	user := models.User{
		BaseModel: models.BaseModel{ID: id},
		Name:      name,
		Email:     id + "@example.com",
		Role:      role,
		IsActive:  true,
	}
	require.NoError(t, f.db.Create(&user).Error)
}

func (f *routerFixture) token(t *testing.T, userID string, role identity.Role) string {
	t.Helper()
	token, err := f.jwt.GenerateAccessToken(iauth.AccessTokenInput{UserID: userID, Role: role})
	require.NoError(t, err)
	return token
}

func (f *routerFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	return envelope.Data
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var envelope struct {
		Success bool             `json:"success"`
		Data    []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	return envelope.Data
}

func TestRouterHealthIsPublic(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouterRequiresAuthentication(t *testing.T) {
	f := newRouterFixture(t)

	for _, path := range []string{"/api/conversations", "/api/notifications", "/api/users/search"} {
		w := f.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, "path %s", path)
	}
}

func TestRouterConversationFlow(t *testing.T) {
	f := newRouterFixture(t)
	f.seedUser(t, "user-1", "Alice", "user")
	f.seedUser(t, "fin-1", "Frank", "finance")

	userToken := f.token(t, "user-1", identity.RoleUser)
	finToken := f.token(t, "fin-1", identity.RoleFinance)

	// Session start: bootstrap then list.
	w := f.do(t, http.MethodPost, "/api/conversations/bootstrap", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/conversations", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	conversations := decodeList(t, w)
	require.Len(t, conversations, 1)
	require.Equal(t, "Frank", conversations[0]["title"])
	convID := conversations[0]["id"].(string)

	// Idempotent create answers 200, not 201.
	w = f.do(t, http.MethodPost, "/api/conversations", userToken, map[string]any{
		"title":           "Frank",
		"participant_ids": []string{"fin-1"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Send and read back.
	w = f.do(t, http.MethodPost, fmt.Sprintf("/api/conversations/%s/messages", convID), userToken, map[string]any{
		"text": "hello there",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	result := decodeData(t, w)
	require.NotNil(t, result["message"])
	require.NotNil(t, result["projection"])

	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/conversations/%s/messages", convID), finToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	messages := decodeList(t, w)
	require.Len(t, messages, 1)
	require.Equal(t, "hello there", messages[0]["body"])

	// The sender's implicit read is visible in the message's read set.
	readBy, ok := messages[0]["read_by"].([]any)
	require.True(t, ok)
	require.Len(t, readBy, 1)
	require.Equal(t, "user-1", readBy[0].(map[string]any)["user_id"])

	// Counterpart acknowledges.
	w = f.do(t, http.MethodPost, fmt.Sprintf("/api/conversations/%s/read", convID), finToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/conversations", finToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	finConversations := decodeList(t, w)
	require.Len(t, finConversations, 1)
	require.EqualValues(t, 0, finConversations[0]["unread_count"])
}

func TestRouterConversationScoping(t *testing.T) {
	f := newRouterFixture(t)
	f.seedUser(t, "user-1", "Alice", "user")
	f.seedUser(t, "user-2", "Bob", "user")
	f.seedUser(t, "user-3", "Carol", "user")

	token := f.token(t, "user-1", identity.RoleUser)

	w := f.do(t, http.MethodPost, "/api/conversations", token, map[string]any{
		"title":           "Bob",
		"participant_ids": []string{"user-2"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	convID := decodeData(t, w)["id"].(string)

	outsider := f.token(t, "user-3", identity.RoleUser)
	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/conversations/%s/messages", convID), outsider, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/api/conversations/missing/messages", outsider, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterNotificationFlow(t *testing.T) {
	f := newRouterFixture(t)
	f.seedUser(t, "user-1", "Alice", "user")
	f.seedUser(t, "fin-1", "Frank", "finance")

	token := f.token(t, "user-1", identity.RoleUser)
	finToken := f.token(t, "fin-1", identity.RoleFinance)

	w := f.do(t, http.MethodPost, "/api/notifications", finToken, map[string]any{
		"user_id": "user-1",
		"title":   "Budget approved",
		"type":    "success",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	notifID := decodeData(t, w)["id"].(string)

	// Expand is view state only; the read flag must stay untouched.
	w = f.do(t, http.MethodPost, fmt.Sprintf("/api/notifications/%s/expand", notifID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, decodeData(t, w)["expanded"])

	w = f.do(t, http.MethodGet, "/api/notifications", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decodeList(t, w)
	require.Len(t, items, 1)
	require.Equal(t, true, items[0]["expanded"])
	require.Equal(t, false, items[0]["is_read"])
	require.Equal(t, "just now", items[0]["relative_time"])

	w = f.do(t, http.MethodPost, fmt.Sprintf("/api/notifications/%s/read", notifID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, fmt.Sprintf("/api/notifications/%s", notifID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, fmt.Sprintf("/api/notifications/%s", notifID), token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterNotificationCreateRequiresStaffRole(t *testing.T) {
	f := newRouterFixture(t)
	f.seedUser(t, "user-1", "Alice", "user")
	f.seedUser(t, "fin-1", "Frank", "finance")

	// A regular user must not write into anyone's feed, their own included.
	token := f.token(t, "user-1", identity.RoleUser)
	for _, target := range []string{"fin-1", "user-1"} {
		w := f.do(t, http.MethodPost, "/api/notifications", token, map[string]any{
			"user_id": target,
			"type":    "error",
			"title":   "Account locked",
		})
		require.Equal(t, http.StatusForbidden, w.Code, "target %s", target)
	}

	finFeed := f.do(t, http.MethodGet, "/api/notifications", f.token(t, "fin-1", identity.RoleFinance), nil)
	require.Equal(t, http.StatusOK, finFeed.Code)
	require.Empty(t, decodeList(t, finFeed))
}

func TestRouterValidationFailure(t *testing.T) {
	f := newRouterFixture(t)
	f.seedUser(t, "user-1", "Alice", "user")

	token := f.token(t, "user-1", identity.RoleUser)

	w := f.do(t, http.MethodPost, "/api/conversations", token, map[string]any{
		"participant_ids": []string{},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Whitespace-only titles are rejected at the boundary.
	w = f.do(t, http.MethodPost, "/api/conversations", token, map[string]any{
		"title":           "   ",
		"participant_ids": []string{"user-1"},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouterUserSearch(t *testing.T) {
	f := newRouterFixture(t)
	f.seedUser(t, "user-1", "Alice", "user")
	f.seedUser(t, "fin-1", "Frank", "finance")
	f.seedUser(t, "user-2", "Bob", "user")

	token := f.token(t, "user-1", identity.RoleUser)

	w := f.do(t, http.MethodGet, "/api/users/search?q=a", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	results := decodeList(t, w)
	require.Len(t, results, 1)
	require.Equal(t, "fin-1", results[0]["id"])
}
