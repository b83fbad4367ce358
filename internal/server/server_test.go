package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/mychat/internal/auth"
	"github.com/sakif/mychat/internal/config"
	"github.com/sakif/mychat/internal/server"
)

// These tests run requests through the real router: middleware, cookie
// auth, role gates, services, and an in-memory SQLite store.

func newTestServer(t *testing.T) *server.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	srv, err := server.New(config.Config{
		Port:            0,
		DBPath:          ":memory:",
		JWTSecret:       "test-secret-at-least-16-chars",
		AvatarDir:       t.TempDir(),
		AdminUsername:   "admin",
		AdminEmail:      "admin@mychat.local",
		AdminPassword:   "Admin123",
		MaxFailedAccess: 3,
		LockoutDuration: time.Hour,
	}, logger)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	return srv
}

// registerForm builds the multipart body the register and admin-create
// endpoints accept.
func registerForm(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("writing field %s: %v", k, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func aliceFields() map[string]string {
	return map[string]string{
		"username":        "alice",
		"email":           "alice@example.com",
		"dateOfBirth":     "1995-06-15",
		"password":        "Secret1",
		"confirmPassword": "Secret1",
	}
}

func doRegister(t *testing.T, srv *server.Server, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := registerForm(t, fields)
	req := httptest.NewRequest(http.MethodPost, "/register", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

func doLogin(t *testing.T, srv *server.Server, login, password string) *httptest.ResponseRecorder {
	t.Helper()

	body := fmt.Sprintf(`{"login":%q,"password":%q}`, login, password)
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

// sessionCookie pulls the session cookie out of a login/register response.
func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.SessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func doJSON(srv *server.Server, method, path string, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return out
}

// =========================================================================
// REGISTRATION AND CHAT FLOW
// =========================================================================

func TestRegisterAndChat(t *testing.T) {
	srv := newTestServer(t)

	rr := doRegister(t, srv, aliceFields())
	assert.Equal(t, http.StatusCreated, rr.Code)

	// Registration signs the user in immediately.
	cookie := sessionCookie(t, rr)

	// New user, empty feed.
	feed := doJSON(srv, http.MethodGet, "/chat", "", cookie)
	assert.Equal(t, http.StatusOK, feed.Code)
	body := decodeBody(t, feed)
	assert.Empty(t, body["messages"])

	// Send a message and see it in the feed with the author attached.
	sent := doJSON(srv, http.MethodPost, "/chat/send", `{"content":"hello everyone"}`, cookie)
	assert.Equal(t, http.StatusCreated, sent.Code)

	feed = doJSON(srv, http.MethodGet, "/chat", "", cookie)
	body = decodeBody(t, feed)
	messages := body["messages"].([]any)
	if assert.Len(t, messages, 1) {
		msg := messages[0].(map[string]any)
		assert.Equal(t, "hello everyone", msg["text"])
		assert.Equal(t, "alice", msg["username"])
	}

	// Poll from the returned cursor: nothing new.
	cursor := int64(body["lastMessageId"].(float64))
	updates := doJSON(srv, http.MethodGet, fmt.Sprintf("/chat/update?lastMessageId=%d", cursor), "", cookie)
	assert.Equal(t, http.StatusOK, updates.Code)
	assert.Empty(t, decodeBody(t, updates)["messages"])

	// Poll from zero: the message comes back.
	updates = doJSON(srv, http.MethodGet, "/chat/update?lastMessageId=0", "", cookie)
	assert.Len(t, decodeBody(t, updates)["messages"], 1)
}

func TestRegisterUnderage(t *testing.T) {
	srv := newTestServer(t)

	fields := aliceFields()
	fields["dateOfBirth"] = time.Now().AddDate(-17, 0, 0).Format("2006-01-02")

	rr := doRegister(t, srv, fields)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "validation_error", body["error"])

	fieldErrs := body["fields"].([]any)
	if assert.Len(t, fieldErrs, 1) {
		assert.Equal(t, "dateOfBirth", fieldErrs[0].(map[string]any)["field"])
	}
}

func TestRegisterDuplicate(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusCreated, doRegister(t, srv, aliceFields()).Code)

	fields := aliceFields()
	fields["email"] = "other@example.com" // username still collides

	rr := doRegister(t, srv, fields)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	fieldErrs := decodeBody(t, rr)["fields"].([]any)
	if assert.Len(t, fieldErrs, 1) {
		assert.Equal(t, "username", fieldErrs[0].(map[string]any)["field"])
	}
}

// =========================================================================
// SIGN-IN
// =========================================================================

func TestLoginWrongPassword(t *testing.T) {
	srv := newTestServer(t)
	doRegister(t, srv, aliceFields())

	wrongPass := doLogin(t, srv, "alice", "WrongPass1")
	unknownUser := doLogin(t, srv, "nobody", "WrongPass1")

	assert.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)

	// Identical bodies: the endpoint must not reveal which part was wrong.
	assert.Equal(t, wrongPass.Body.String(), unknownUser.Body.String())
}

func TestLoginLockout(t *testing.T) {
	srv := newTestServer(t)
	doRegister(t, srv, aliceFields())

	for i := 0; i < 3; i++ {
		doLogin(t, srv, "alice", "WrongPass1")
	}

	// Correct password, but the account is locked now — and the response
	// says so explicitly.
	rr := doLogin(t, srv, "alice", "Secret1")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "account_locked", decodeBody(t, rr)["error"])
}

func TestLoginReturnURL(t *testing.T) {
	srv := newTestServer(t)
	doRegister(t, srv, aliceFields())

	login := func(returnURL string) string {
		body := `{"login":"alice","password":"Secret1"}`
		req := httptest.NewRequest(http.MethodPost, "/login?returnUrl="+returnURL, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		srv.Router().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		return decodeBody(t, rr)["redirect"].(string)
	}

	assert.Equal(t, "/profile", login("/profile"))
	// Anything that could leave the site falls back to the default.
	assert.Equal(t, "/chat", login("https://evil.example"))
	assert.Equal(t, "/chat", login("//evil.example"))
}

func TestAnonymousRejected(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, doJSON(srv, http.MethodGet, "/chat", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, doJSON(srv, http.MethodGet, "/profile", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, doJSON(srv, http.MethodGet, "/admin", "", nil).Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	srv := newTestServer(t)
	cookie := sessionCookie(t, doRegister(t, srv, aliceFields()))

	rr := doJSON(srv, http.MethodPost, "/logout", "", cookie)
	assert.Equal(t, http.StatusOK, rr.Code)

	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			assert.Empty(t, c.Value)
			assert.Negative(t, c.MaxAge)
		}
	}
}

// =========================================================================
// ADMIN
// =========================================================================

func TestAdminSeededAndGated(t *testing.T) {
	srv := newTestServer(t)

	// The seeded admin can sign in and list users.
	admin := sessionCookie(t, doLogin(t, srv, "admin", "Admin123"))
	rr := doJSON(srv, http.MethodGet, "/admin", "", admin)
	assert.Equal(t, http.StatusOK, rr.Code)

	// A regular user is authenticated but not authorised.
	user := sessionCookie(t, doRegister(t, srv, aliceFields()))
	rr = doJSON(srv, http.MethodGet, "/admin", "", user)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAdminBlockUnblock(t *testing.T) {
	srv := newTestServer(t)
	admin := sessionCookie(t, doLogin(t, srv, "admin", "Admin123"))

	body := decodeBody(t, doRegister(t, srv, aliceFields()))
	aliceID := body["user"].(map[string]any)["id"].(string)

	// Block: sign-in is refused with the locked error even on the correct
	// password.
	rr := doJSON(srv, http.MethodPost, "/admin/block/"+aliceID, "", admin)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	locked := doLogin(t, srv, "alice", "Secret1")
	assert.Equal(t, http.StatusForbidden, locked.Code)
	assert.Equal(t, "account_locked", decodeBody(t, locked)["error"])

	// Unblock: sign-in works again.
	rr = doJSON(srv, http.MethodPost, "/admin/unblock/"+aliceID, "", admin)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, http.StatusOK, doLogin(t, srv, "alice", "Secret1").Code)
}

func TestAdminCreateWithRole(t *testing.T) {
	srv := newTestServer(t)
	admin := sessionCookie(t, doLogin(t, srv, "admin", "Admin123"))

	fields := aliceFields()
	fields["username"] = "moderator"
	fields["email"] = "mod@example.com"
	fields["role"] = "admin"

	body, contentType := registerForm(t, fields)
	req := httptest.NewRequest(http.MethodPost, "/admin/create", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(admin)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	created := decodeBody(t, rr)
	assert.Equal(t, []any{"admin"}, created["roles"])

	// The new admin can use the admin surface.
	modCookie := sessionCookie(t, doLogin(t, srv, "moderator", "Secret1"))
	assert.Equal(t, http.StatusOK, doJSON(srv, http.MethodGet, "/admin", "", modCookie).Code)
}

func TestAdminDeleteMessage(t *testing.T) {
	srv := newTestServer(t)
	admin := sessionCookie(t, doLogin(t, srv, "admin", "Admin123"))
	user := sessionCookie(t, doRegister(t, srv, aliceFields()))

	sent := doJSON(srv, http.MethodPost, "/chat/send", `{"content":"delete me"}`, user)
	assert.Equal(t, http.StatusCreated, sent.Code)
	msgID := int64(decodeBody(t, sent)["id"].(float64))

	rr := doJSON(srv, http.MethodPost, fmt.Sprintf("/admin/messages/%d/delete", msgID), "", admin)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	feed := doJSON(srv, http.MethodGet, "/chat", "", user)
	assert.Empty(t, decodeBody(t, feed)["messages"])

	// Regular users cannot delete messages.
	rr = doJSON(srv, http.MethodPost, "/admin/messages/1/delete", "", user)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAdminDeleteUserCascades(t *testing.T) {
	srv := newTestServer(t)
	admin := sessionCookie(t, doLogin(t, srv, "admin", "Admin123"))
	user := sessionCookie(t, doRegister(t, srv, aliceFields()))

	doJSON(srv, http.MethodPost, "/chat/send", `{"content":"soon gone"}`, user)

	list := decodeBody(t, doJSON(srv, http.MethodGet, "/admin", "", admin))
	var aliceID string
	for _, u := range list["users"].([]any) {
		entry := u.(map[string]any)
		if entry["username"] == "alice" {
			aliceID = entry["id"].(string)
		}
	}
	if aliceID == "" {
		t.Fatal("alice not in the user list")
	}

	rr := doJSON(srv, http.MethodPost, "/admin/delete/"+aliceID, "", admin)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	// Messages went with the account.
	feed := doJSON(srv, http.MethodGet, "/chat", "", admin)
	assert.Empty(t, decodeBody(t, feed)["messages"])

	// The deleted user's still-valid token no longer sends.
	rr = doJSON(srv, http.MethodPost, "/chat/send", `{"content":"ghost"}`, user)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// =========================================================================
// PROFILE
// =========================================================================

func TestProfileRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	cookie := sessionCookie(t, doRegister(t, srv, aliceFields()))

	rr := doJSON(srv, http.MethodGet, "/profile", "", cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	profile := decodeBody(t, rr)
	assert.Equal(t, "alice", profile["username"])
	assert.Equal(t, "1995-06-15", profile["dateOfBirth"])

	// Edit the email; username stays.
	body, contentType := registerForm(t, map[string]string{
		"username":    "alice",
		"email":       "new@example.com",
		"dateOfBirth": "1995-06-15",
	})
	req := httptest.NewRequest(http.MethodPost, "/profile", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(cookie)
	edit := httptest.NewRecorder()
	srv.Router().ServeHTTP(edit, req)

	assert.Equal(t, http.StatusOK, edit.Code)
	assert.Equal(t, "new@example.com", decodeBody(t, edit)["email"])
}
