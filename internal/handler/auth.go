package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/mychat/internal/auth"
	"github.com/sakif/mychat/internal/service"
	"github.com/sakif/mychat/internal/validation"
)

// AuthHandler covers the anonymous surface: registration, sign-in, and
// sign-out. Successful register and login both set the session cookie, so a
// fresh registrant lands signed in.
type AuthHandler struct {
	users  *service.UserService
	login  *service.LoginService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(users *service.UserService, login *service.LoginService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		login:  login,
		logger: logger,
	}
}

// registerResponse pairs the created account with the redirect the client
// should follow.
type registerResponse struct {
	User     UserView `json:"user"`
	Redirect string   `json:"redirect"`
}

// HandleRegister creates a self-service account.
//
// HTTP: POST /register — multipart form with username, email, dateOfBirth
// (yyyy-mm-dd), password, confirmPassword, and an optional avatar file.
//
// On success the new user is signed in immediately: the session cookie is
// set alongside the 201.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		writeError(w, err)
		return
	}

	dob, err := formDate(r, "dateOfBirth")
	if err != nil {
		writeError(w, err)
		return
	}

	upload, err := formUpload(r, "avatar")
	if err != nil {
		writeError(w, err)
		return
	}

	in := validation.RegisterInput{
		Username:        strings.TrimSpace(r.FormValue("username")),
		Email:           strings.TrimSpace(r.FormValue("email")),
		DateOfBirth:     dob,
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirmPassword"),
	}

	user, err := h.users.Register(r.Context(), in, upload)
	if err != nil {
		writeError(w, err)
		return
	}

	// Auto-login: issue a standard-lifetime session for the new account.
	result, err := h.login.Login(r.Context(), user.Username, in.Password, false)
	if err != nil {
		// The account exists but the session could not be issued; the user
		// can still sign in manually.
		h.logger.Error("auto-login after registration failed",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusCreated, registerResponse{User: toUserView(*user), Redirect: "/login"})
		return
	}

	auth.SetSessionCookie(w, result.Token, result.Lifetime)
	writeJSON(w, http.StatusCreated, registerResponse{User: toUserView(*user), Redirect: "/chat"})
}

// loginRequest is the sign-in payload. Login accepts a username or an email.
type loginRequest struct {
	Login      string `json:"login"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type loginResponse struct {
	User     UserView `json:"user"`
	Redirect string   `json:"redirect"`
}

// HandleLogin authenticates and sets the session cookie.
//
// HTTP: POST /login?returnUrl=/some/path — JSON body loginRequest.
//
// The returnUrl query parameter is honoured only when it is a local path;
// an absolute URL or protocol-relative value falls back to the default, so
// the login endpoint can't be used as an open redirect.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	result, err := h.login.Login(r.Context(), strings.TrimSpace(req.Login), req.Password, req.RememberMe)
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, result.Token, result.Lifetime)

	redirect := "/chat"
	if ret := r.URL.Query().Get("returnUrl"); isLocalPath(ret) {
		redirect = ret
	}

	writeJSON(w, http.StatusOK, loginResponse{User: toUserView(*result.User), Redirect: redirect})
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /logout — state-changing, so POST rather than GET.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"redirect": "/"})
}

// isLocalPath accepts "/path" style targets and rejects anything that could
// leave the site, including protocol-relative "//evil.example".
func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}
