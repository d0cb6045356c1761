package account

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// NewAccountRequest is one submission of the add-user form.
type NewAccountRequest struct {
	UID             string `label:"uid" validate:"required,max=32,username"`
	GivenName       string `label:"given name" validate:"required,max=64"`
	Surname         string `label:"surname" validate:"required,max=64"`
	Password        string `label:"password"`
	PasswordConfirm string `label:"password confirmation"`
	BindUID         string `label:"your uid" validate:"required"`
	BindPassword    string `label:"your password" validate:"required"`
}

var usernamePattern = regexp.MustCompile(`^[a-z][a-z0-9]*$`)

func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("label")
	})
	// registration only fails for empty tags or nil funcs
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

func validateRequest(v *validator.Validate, req NewAccountRequest) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("validate request: %w", err)
	}

	problems := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		switch fe.Tag() {
		case "required":
			problems = append(problems, fe.Field()+" is required")
		case "max":
			problems = append(problems, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		case "username":
			problems = append(problems, fe.Field()+" must start with a lowercase letter and contain only lowercase letters and digits")
		default:
			problems = append(problems, fe.Field()+" is invalid")
		}
	}
	return &RequestError{Problems: problems}
}
