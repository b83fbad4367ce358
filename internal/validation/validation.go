// Package validation holds the pure input-checking rules shared by
// self-registration, profile edit, and the admin create/edit operations.
//
// The same rules run on every path that mutates a user, so they live here
// rather than in any one service method. Struct-shape checks (required,
// email format, lengths) go through go-playground/validator tags; the rules
// a tag can't express (exact calendar age, password character classes,
// confirm-password match) are explicit functions below.
package validation

import (
	"fmt"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/mychat/internal/apperror"
)

// MinimumAge is the youngest a user may be at any create or edit.
const MinimumAge = 18

// MinPasswordLength mirrors the account policy: at least 6 characters with
// an upper-case letter, a lower-case letter, and a digit.
const MinPasswordLength = 6

var validate = validator.New()

// ComputeAge returns the exact calendar age in whole years at asOf.
//
// Calendar subtraction first, then minus one if the birthday hasn't happened
// yet this year. This is NOT floor(days/365): someone born 2000-03-01 is 17
// on 2018-02-28 and 18 on 2018-03-01, leap years notwithstanding.
func ComputeAge(birthDate, asOf time.Time) int {
	age := asOf.Year() - birthDate.Year()
	// AddDate(-age) lands on the birthday in asOf's year; if asOf is still
	// before it, the birthday hasn't come around yet.
	if asOf.Before(birthDate.AddDate(age, 0, 0)) {
		age--
	}
	return age
}

// CheckAge attaches a dateOfBirth field error when the user would be under
// MinimumAge at asOf. Age is only checked at mutation time — an account is
// never re-validated retroactively.
func CheckAge(errs *apperror.Fields, birthDate, asOf time.Time) {
	if ComputeAge(birthDate, asOf) < MinimumAge {
		errs.Add("dateOfBirth", fmt.Sprintf("user must be at least %d years old", MinimumAge))
	}
}

// RegisterInput is the payload for self-registration and admin create.
type RegisterInput struct {
	Username        string    `validate:"required,max=64"`
	Email           string    `validate:"required,email"`
	DateOfBirth     time.Time `validate:"required"`
	Password        string    `validate:"required"`
	ConfirmPassword string    `validate:"required"`
}

// ProfileInput is the payload for self profile edit and admin edit.
type ProfileInput struct {
	Username    string    `validate:"required,max=64"`
	Email       string    `validate:"required,email"`
	DateOfBirth time.Time `validate:"required"`
}

// CheckRegister validates a registration payload. Returns apperror.Fields
// (possibly several entries) or nil.
func CheckRegister(in RegisterInput, now time.Time) error {
	var errs apperror.Fields
	collectStructErrors(&errs, validate.Struct(in))
	if in.DateOfBirth.IsZero() {
		errs.Add("dateOfBirth", "date of birth is required")
	} else {
		CheckAge(&errs, in.DateOfBirth, now)
	}
	if in.Password != "" {
		CheckPassword(&errs, in.Password)
		if in.ConfirmPassword != "" && in.Password != in.ConfirmPassword {
			errs.Add("confirmPassword", "passwords do not match")
		}
	}
	return errs.OrNil()
}

// CheckProfile validates a profile-edit payload.
func CheckProfile(in ProfileInput, now time.Time) error {
	var errs apperror.Fields
	collectStructErrors(&errs, validate.Struct(in))
	if in.DateOfBirth.IsZero() {
		errs.Add("dateOfBirth", "date of birth is required")
	} else {
		CheckAge(&errs, in.DateOfBirth, now)
	}
	return errs.OrNil()
}

// CheckPassword applies the password policy: length plus required character
// classes. Non-alphanumeric characters are allowed but not required.
func CheckPassword(errs *apperror.Fields, password string) {
	if len(password) < MinPasswordLength {
		errs.Add("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
		return
	}
	var hasUpper, hasLower, hasDigit bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsLower(c):
			hasLower = true
		case unicode.IsDigit(c):
			hasDigit = true
		}
	}
	if !hasUpper {
		errs.Add("password", "password must contain an upper-case letter")
	}
	if !hasLower {
		errs.Add("password", "password must contain a lower-case letter")
	}
	if !hasDigit {
		errs.Add("password", "password must contain a digit")
	}
}

// collectStructErrors translates validator tag failures into field-scoped
// apperror entries. Field names are lower-cased to match the JSON form names
// the handlers expose.
func collectStructErrors(errs *apperror.Fields, err error) {
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !asValidationErrors(err, &verrs) {
		errs.Add("", err.Error())
		return
	}
	for _, fe := range verrs {
		field := lowerFirst(fe.Field())
		switch fe.Tag() {
		case "required":
			errs.Add(field, fmt.Sprintf("%s is required", field))
		case "email":
			errs.Add(field, "email address is not valid")
		case "max":
			errs.Add(field, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			errs.Add(field, fmt.Sprintf("%s is not valid", field))
		}
	}
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	ve, ok := err.(validator.ValidationErrors)
	if ok {
		*target = ve
	}
	return ok
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
