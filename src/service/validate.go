package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// ErrValidation wraps every input rule violation.
var ErrValidation = errors.New("validation failed")

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// SignupInput is the body of a signup request.
type SignupInput struct {
	Username string `json:"username" validate:"required,min=3,max=20,username"`
	// bcrypt ignores bytes past 72, so that is the ceiling.
	Password string `json:"password" validate:"required,min=8,max=72,strongpassword"`
	Name     string `json:"name" validate:"required,min=1,max=50"`
}

// SigninInput is the body of a signin request.
type SigninInput struct {
	Username string `json:"username" validate:"required,min=3,max=20,username"`
	Password string `json:"password" validate:"required,max=72"`
}

// CreateRoomInput is the body of a create-room request.
type CreateRoomInput struct {
	Name string `json:"name" validate:"required,min=3,max=30"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return strongPassword(fl.Field().String())
	})
	return v
}

// strongPassword requires an upper and lower case letter, a digit and a
// symbol.
func strongPassword(p string) bool {
	var upper, lower, digit, special bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return upper && lower && digit && special
}

// validate checks in and reports the first failing field.
func (s *Service) validate(in any) error {
	err := s.validator.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed %s", ErrValidation, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}
