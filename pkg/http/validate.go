package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = newValidator()

// newValidator reports fields under the name the client sent them as:
// path param, then query key, then JSON key.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"param", "query", "json"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// BindRequest binds path, query and body into req, fills `default` tags for
// fields the client left empty, then validates. nil means the request is usable.
func BindRequest(c echo.Context, req any) []FieldError {
	if err := c.Bind(req); err != nil {
		return fieldErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return fieldErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return fieldErrors(err)
	}
	return nil
}

func fieldErrors(err error) []FieldError {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		out := make([]FieldError, 0, len(ves))
		for _, fe := range ves {
			out = append(out, FieldError{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   fe.Field(),
				Message: describe(fe),
				Limit:   fe.Param(),
			})
		}
		return out
	}

	// binding failures: a non-numeric :id, a malformed body
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	return []FieldError{{Code: CodeBadRequest, Message: msg}}
}

func describe(fe validator.FieldError) string {
	name, p := fe.Field(), fe.Param()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", name, p)
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", name, p)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", name, p)
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", name, p)
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", name, strings.ReplaceAll(p, " ", ", "))
	}
	return fmt.Sprintf("%s is invalid (%s)", name, fe.Tag())
}
