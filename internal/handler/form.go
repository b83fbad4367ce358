package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sakif/mychat/internal/apperror"
	"github.com/sakif/mychat/internal/model"
	"github.com/sakif/mychat/internal/service"
)

const (
	// maxUploadBytes caps an avatar upload at 2 MiB.
	maxUploadBytes = 2 << 20

	// dateLayout is the wire format for birth dates.
	dateLayout = "2006-01-02"
)

// parseForm reads a request that may be multipart (avatar-bearing forms) or
// urlencoded. Handlers call r.FormValue afterwards either way.
func parseForm(r *http.Request) error {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return r.ParseForm()
		}
		return apperror.ValidationFailed("", "malformed form data")
	}
	return nil
}

// formUpload extracts the optional file from a multipart form. A missing
// file is not an error — it returns nil so the service keeps the current
// avatar (or assigns the default).
func formUpload(r *http.Request, field string) (*service.Upload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, apperror.ValidationFailed(field, "could not read uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("handler: reading upload: %w", err)
	}
	if len(data) > maxUploadBytes {
		return nil, apperror.ValidationFailed(field, "file is too large (2 MB maximum)")
	}

	return &service.Upload{Data: data, Name: header.Filename}, nil
}

// formDate parses a required yyyy-mm-dd form field.
func formDate(r *http.Request, field string) (time.Time, error) {
	raw := r.FormValue(field)
	if raw == "" {
		return time.Time{}, apperror.ValidationFailed(field, "date is required")
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, apperror.ValidationFailed(field, "date must be in yyyy-mm-dd format")
	}
	return t, nil
}

// UserView is the user shape returned to clients. Sensitive columns never
// appear here; the date of birth is rendered date-only.
type UserView struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	DateOfBirth string   `json:"dateOfBirth"`
	AvatarPath  string   `json:"avatarPath"`
	Roles       []string `json:"roles"`
	Blocked     bool     `json:"blocked"`
}

func toUserView(u model.User) UserView {
	return UserView{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DateOfBirth: u.DateOfBirth.Format(dateLayout),
		AvatarPath:  u.AvatarPath,
		Roles:       u.Roles,
		Blocked:     u.IsLockedOut(time.Now()),
	}
}
