package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/sakif/mychat/internal/apperror"
	"github.com/sakif/mychat/internal/model"
	"github.com/sakif/mychat/internal/service"
	"github.com/sakif/mychat/internal/validation"
)

// AdminHandler is the user-management surface. Every route here sits behind
// the admin role gate in the router; the handler trusts that and does not
// re-check roles.
type AdminHandler struct {
	users  *service.UserService
	chat   *service.ChatService
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(users *service.UserService, chat *service.ChatService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		users:  users,
		chat:   chat,
		logger: logger,
	}
}

// HandleList returns every account.
//
// HTTP: GET /admin
func (h *AdminHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": lo.Map(users, func(u model.User, _ int) UserView { return toUserView(u) }),
	})
}

// HandleGet returns one account for the edit form.
//
// HTTP: GET /admin/edit/{id}
func (h *AdminHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserView(*user))
}

// HandleCreate creates an account on a user's behalf.
//
// HTTP: POST /admin/create — the same multipart form as registration, plus
// an optional role field ("user" or "admin"; empty means "user"). The
// created account gets exactly the requested role.
func (h *AdminHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		writeError(w, err)
		return
	}

	role := strings.TrimSpace(r.FormValue("role"))
	if role != "" && role != model.RoleUser && role != model.RoleAdmin {
		writeError(w, apperror.ValidationFailed("role", "role must be user or admin"))
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

	user, err := h.users.CreateByAdmin(r.Context(), in, upload, role)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserView(*user))
}

// HandleUpdate edits any account. Same rules as the self-service profile
// edit — the admin form cannot create an underage or colliding identity
// either.
//
// HTTP: POST /admin/edit/{id}
func (h *AdminHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
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

	user, err := h.users.UpdateProfile(r.Context(), chi.URLParam(r, "id"), in, upload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserView(*user))
}

// HandleBlock locks an account indefinitely.
//
// HTTP: POST /admin/block/{id}
func (h *AdminHandler) HandleBlock(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Block(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUnblock lifts a lockout and resets the failed-access counter.
//
// HTTP: POST /admin/unblock/{id}
func (h *AdminHandler) HandleUnblock(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Unblock(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete removes an account and, via the store cascade, its messages.
//
// HTTP: POST /admin/delete/{id}
func (h *AdminHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteMessage removes a single chat message.
//
// HTTP: POST /admin/messages/{id}/delete
func (h *AdminHandler) HandleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperror.ValidationFailed("id", "message id must be an integer"))
		return
	}

	if err := h.chat.DeleteMessage(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
