// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/fieldsync/internal/models"
)

// CodeValidationFailed is the API error code for rejected input.
const CodeValidationFailed = "VALIDATION_FAILED"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// ValidationError is a single field failure.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the JSON name of the field that failed.
func (e *ValidationError) Field() string { return e.field }

// Tag returns the failed validation tag.
func (e *ValidationError) Tag() string { return e.tag }

// Param returns the tag parameter, e.g. "64" for max=64.
func (e *ValidationError) Param() string { return e.param }

// Value returns the rejected value.
func (e *ValidationError) Value() interface{} { return e.value }

func (e *ValidationError) Error() string { return e.message }

// RequestValidationError collects field failures for one request.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the individual failures.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, 0, len(ve.errors))
	for _, err := range ve.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// APIError mirrors the API error body without importing the api package.
type APIError struct {
	Code    string
	Message string
	Details map[string]interface{}
}

// ToAPIError converts the failures to a VALIDATION_FAILED error body.
func (ve *RequestValidationError) ToAPIError() *APIError {
	switch len(ve.errors) {
	case 0:
		return &APIError{Code: CodeValidationFailed, Message: "Validation failed"}
	case 1:
		err := ve.errors[0]
		return &APIError{
			Code:    CodeValidationFailed,
			Message: err.message,
			Details: map[string]interface{}{
				"field": err.field,
				"tag":   err.tag,
			},
		}
	}

	fields := make([]map[string]interface{}, len(ve.errors))
	messages := make([]string, len(ve.errors))
	for i, err := range ve.errors {
		fields[i] = map[string]interface{}{
			"field":   err.field,
			"tag":     err.tag,
			"message": err.message,
		}
		messages[i] = err.message
	}
	return &APIError{
		Code:    CodeValidationFailed,
		Message: strings.Join(messages, "; "),
		Details: map[string]interface{}{"fields": fields},
	}
}

// GetValidator returns the shared validator. Field names in errors are the
// JSON names so messages match what the client sent.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonFieldName)

		if err := v.RegisterValidation("tempid", validateTempID); err != nil {
			panic(fmt.Sprintf("register tempid validator: %v", err))
		}
		v.RegisterStructValidation(validatePhotoRef, models.PhotoRef{})

		validate = v
	})
	return validate
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

func validateTempID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	return models.IsTempID(id) && len(id) > len(models.TempIDPrefix)
}

// validatePhotoRef requires a photo reference to point at something.
func validatePhotoRef(sl validator.StructLevel) {
	ref, ok := sl.Current().Interface().(models.PhotoRef)
	if !ok {
		return
	}
	if ref.StagedKey == "" && ref.Inline == "" {
		sl.ReportError(ref.StagedKey, "staged_key", "StagedKey", "photo_source", "")
	}
}

// ValidateStruct validates s with the shared validator. It returns nil or a
// *RequestValidationError.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestValidationError{
			errors: []ValidationError{{field: "unknown", tag: "unknown", message: err.Error()}},
		}
	}

	fieldErrors := make([]ValidationError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		fieldErrors[i] = ValidationError{
			field:   fieldErr.Field(),
			tag:     fieldErr.Tag(),
			param:   fieldErr.Param(),
			value:   fieldErr.Value(),
			message: translateError(fieldErr),
		}
	}
	return &RequestValidationError{errors: fieldErrors}
}

// ValidatePayload checks a mutation payload before it is queued. It also
// rejects a payload whose variant does not match t.
func ValidatePayload(t models.MutationType, p models.Payload) *RequestValidationError {
	if p == nil {
		return single("payload", "required", "payload is required")
	}
	if !t.Valid() {
		return single("type", "oneof", fmt.Sprintf("type must be one of: %s", mutationTypeList()))
	}
	if p.MutationType() != t {
		return single("type", "match", fmt.Sprintf("payload does not match type %s", t))
	}
	return ValidateStruct(p)
}

func single(field, tag, msg string) *RequestValidationError {
	return &RequestValidationError{errors: []ValidationError{{field: field, tag: tag, message: msg}}}
}

func mutationTypeList() string {
	names := make([]string, len(models.MutationTypes))
	for i, t := range models.MutationTypes {
		names[i] = string(t)
	}
	return strings.Join(names, " ")
}

// errorMessageTemplates take the field name.
var errorMessageTemplates = map[string]string{
	"required":     "%s is required",
	"latitude":     "%s must be a valid latitude (-90 to 90)",
	"longitude":    "%s must be a valid longitude (-180 to 180)",
	"tempid":       "%s must be a temporary id starting with " + models.TempIDPrefix,
	"photo_source": "%s or inline data is required for a photo",
}

// errorMessageWithParam take the field name and the tag parameter.
var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

func translateError(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}
	return translateMinMax(fe, field, tag, param)
}

func translateMinMax(fe validator.FieldError, field, tag, param string) string {
	unit := ""
	switch fe.Kind() {
	case reflect.String:
		unit = " characters"
	case reflect.Map, reflect.Slice:
		unit = " entries"
	}
	switch tag {
	case "min":
		return fmt.Sprintf("%s must have at least %s%s", field, param, unit)
	case "max":
		return fmt.Sprintf("%s must have at most %s%s", field, param, unit)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
