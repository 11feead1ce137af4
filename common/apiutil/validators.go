package apiutil

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/Aidin1998/accountmanager/common/errors"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterBindingTagNames makes gin's binding validator report fields by
// their json names.
func RegisterBindingTagNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(jsonTagName)
}

func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// BindingError converts an error from ShouldBind* into an Invalid error with
// one field entry per failed constraint.
func BindingError(err error) error {
	var typed *errors.Error
	if errors.As(err, &typed) {
		return typed
	}

	var fieldsErr validator.ValidationErrors
	if errors.As(err, &fieldsErr) {
		validationErr := errors.Invalid.Explain("validation error")
		for _, fieldErr := range fieldsErr {
			validationErr = validationErr.WithField(fieldErr.Tag(), fieldErr.Field(), describe(fieldErr))
		}
		return validationErr
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return errors.Invalid.Explain("invalid request body").
			WithField("type", typeErr.Field, fmt.Sprintf("expected %s", typeErr.Type))
	}

	return errors.Invalid.Explain("invalid request body: %v", err)
}

func describe(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "iso4217":
		return "must be an ISO 4217 currency code"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fieldErr.Param())
	default:
		return fmt.Sprintf("failed %s validation", fieldErr.Tag())
	}
}
