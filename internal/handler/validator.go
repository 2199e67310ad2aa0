package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$`)

// FieldError is one entry of a 422 response detail.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator adapts validator/v10 to echo.Validator. Failures become a 422
// whose detail lists every offending field by its JSON name.
type Validator struct {
	v *validator.Validate
}

// NewValidator registers the "phone" and "password" tags. Passwords are
// bounded in bytes by minPassword and maxPassword.
func NewValidator(minPassword, maxPassword int) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		n := len(fl.Field().String())
		return n >= minPassword && n <= maxPassword
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return echo.NewHTTPError(http.StatusUnprocessableEntity, out)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "eqfield":
		return "Passwords do not match"
	case "email":
		return "value is not a valid email address"
	case "uuid":
		return "value is not a valid uuid"
	case "phone":
		return "value is not a valid phone number"
	case "password":
		return "password length is out of bounds"
	}
	return fmt.Sprintf("failed on the %q rule", fe.Tag())
}

// bindValid binds the request body into req and validates it.
func bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid request body").SetInternal(err)
	}
	return c.Validate(req)
}
