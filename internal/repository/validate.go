package repository

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vietddude/docsite/internal/core/dberr"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names so errors match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	return v
}

func validateInput(in any) error {
	return dberr.FromValidation(validate.Struct(in))
}

// CreateUserInput is the body accepted when registering a user.
type CreateUserInput struct {
	Email string `json:"email" validate:"required,email,min=5,max=255"`
	Name  string `json:"name"  validate:"required,min=1,max=255"`
}

// UpdateUserInput is a partial user update. Nil fields are left untouched.
type UpdateUserInput struct {
	Email *string `json:"email" validate:"omitnil,email,min=5,max=255"`
	Name  *string `json:"name"  validate:"omitnil,min=1,max=255"`
}

// CreatePostInput is the body accepted when creating a post.
type CreatePostInput struct {
	UserID    string     `json:"userId"    validate:"required,uuid"`
	Title     string     `json:"title"     validate:"required,min=1,max=255"`
	Content   string     `json:"content"   validate:"required,min=10"`
	Slug      string     `json:"slug"      validate:"required,min=1,max=255,slug"`
	Published *time.Time `json:"published"`
}

// UpdatePostInput is a partial post update. The author cannot be changed.
type UpdatePostInput struct {
	Title     *string    `json:"title"     validate:"omitnil,min=1,max=255"`
	Content   *string    `json:"content"   validate:"omitnil,min=10"`
	Slug      *string    `json:"slug"      validate:"omitnil,min=1,max=255,slug"`
	Published *time.Time `json:"published"`
}
