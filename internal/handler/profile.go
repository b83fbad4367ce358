package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/mychat/internal/apperror"
	"github.com/sakif/mychat/internal/auth"
	"github.com/sakif/mychat/internal/service"
	"github.com/sakif/mychat/internal/validation"
)

// ProfileHandler serves the signed-in user's own profile. The target is
// always the principal from the session — there is no way to address
// another user's profile through this surface.
type ProfileHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(users *service.UserService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{users: users, logger: logger}
}

// HandleGet returns the current user's profile.
//
// HTTP: GET /profile
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("sign in required"))
		return
	}

	user, err := h.users.Get(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserView(*user))
}

// HandleUpdate edits the current user's profile.
//
// HTTP: POST /profile — multipart form with username, email, dateOfBirth
// (yyyy-mm-dd), and an optional avatar file. Password changes are not part
// of this form.
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("sign in required"))
		return
	}

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

	in := validation.ProfileInput{
		Username:    strings.TrimSpace(r.FormValue("username")),
		Email:       strings.TrimSpace(r.FormValue("email")),
		DateOfBirth: dob,
	}

	user, err := h.users.UpdateProfile(r.Context(), principal.UserID, in, upload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserView(*user))
}
