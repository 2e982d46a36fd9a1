package catalog

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-kino"
)

const (
	maxPasswordBytes = 72
	maxNameLength    = 120
	maxCommentLength = 4000
)

type signupInput struct {
	Name     *string `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
}

func newSignupInput(args kino.Args) signupInput {
	return signupInput{
		Name:     trimmed(args.OptionalString("name")),
		Email:    normalizeEmail(args.String("email")),
		Password: args.String("password"),
	}
}

func (in signupInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.RuneLength(1, maxNameLength)),
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Password, validation.Required, validation.Length(1, maxPasswordBytes)),
	)
}

type commentInput struct {
	Content string `json:"content"`
}

func (in commentInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Content, validation.Required, validation.RuneLength(1, maxCommentLength)),
	)
}

// validationError turns ozzo errors into a kino ValidationError naming the
// first offending field.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return kino.NewValidationError("", err.Error())
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	field := keys[0]
	return kino.NewValidationError(field, field+": "+fields[field].Error())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// trimmed drops surrounding space and turns blank values into nil.
func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

func trimmedString(value string) string {
	return strings.TrimSpace(value)
}
