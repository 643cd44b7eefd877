package http

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterForm is the registration page input.
type RegisterForm struct {
	Email           string `form:"email" validate:"required,email,max=150"`
	Password        string `form:"password" validate:"required,min=8,max=72,maxbytes=72"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
}

// LoginForm is the login page input.
type LoginForm struct {
	Email    string `form:"email" validate:"required,email,max=150"`
	Password string `form:"password" validate:"required"`
}

// TaskForm is the input of the add and update task pages.
type TaskForm struct {
	Name     string `form:"name" validate:"required,max=150"`
	DueDate  string `form:"due_date" validate:"required,datetime=2006-01-02"`
	Finished bool   `form:"finished"`
}

// NewValidator returns a validator that reports fields by their form name.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	if err := v.RegisterValidation("maxbytes", maxBytes); err != nil {
		panic(err)
	}
	return v
}

// maxBytes limits the encoded length of a string, which max does not:
// max counts runes.
func maxBytes(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		panic(fmt.Sprintf("maxbytes: bad parameter %q", fl.Param()))
	}
	return len(fl.Field().String()) <= n
}

func parseRegisterForm(r *http.Request) RegisterForm {
	return RegisterForm{
		Email:           strings.TrimSpace(r.PostFormValue("email")),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}
}

func parseLoginForm(r *http.Request) LoginForm {
	return LoginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
}

func parseTaskForm(r *http.Request) TaskForm {
	return TaskForm{
		Name:     strings.TrimSpace(r.PostFormValue("name")),
		DueDate:  strings.TrimSpace(r.PostFormValue("due_date")),
		Finished: checked(r.PostFormValue("finished")),
	}
}

func checked(v string) bool {
	switch strings.ToLower(v) {
	case "y", "yes", "on", "true", "1":
		return true
	}
	return false
}

// fieldErrors maps a validation failure to one message per form field.
// Errors that are not validation errors are returned as is.
func fieldErrors(err error) (map[string]string, error) {
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = message(fe)
	}
	return out, nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Invalid email address."
	case "max":
		return fmt.Sprintf("Field cannot be longer than %s characters.", fe.Param())
	case "maxbytes":
		return fmt.Sprintf("Field cannot be longer than %s bytes.", fe.Param())
	case "min":
		return fmt.Sprintf("Field must be at least %s characters long.", fe.Param())
	case "eqfield":
		return "Passwords must match."
	case "datetime":
		return "Not a valid date value."
	}
	return "Invalid value."
}
