package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/coliving/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupValidator configures the validator with custom tags
func SetupValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		// report fields by their JSON names
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})
	}
}

// FormatValidationErrors formats validation errors into a standard response
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			details = append(details, dto.ValidationDetail{
				Field:   e.Field(),
				Message: getValidationMessage(e),
			})
		}
	}

	return dto.NewValidationErrorResponse(
		"Request validation failed",
		requestID,
		details,
	)
}

// HandleValidationError returns a validation error response
func HandleValidationError(c *gin.Context, err error) {
	c.Set(ErrorCodeKey, dto.ErrCodeValidation)
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, GetRequestID(c)))
}

var boundMessages = map[string]string{
	"gte": "Must be greater than or equal to ",
	"lte": "Must be less than or equal to ",
	"gt":  "Must be greater than ",
	"lt":  "Must be less than ",
}

// dateLayouts names the Go layouts used in binding tags
var dateLayouts = map[string]string{
	"2006-01-02": "YYYY-MM-DD",
	"2006-01":    "YYYY-MM",
}

// getValidationMessage turns a failed tag into text for API clients
func getValidationMessage(e validator.FieldError) string {
	tag, param := e.Tag(), e.Param()
	if prefix, ok := boundMessages[tag]; ok {
		return prefix + param
	}

	unit := ""
	if e.Kind() == reflect.String {
		unit = " characters"
	}
	switch tag {
	case "required":
		return "This field is required"
	case "min":
		return "Must be at least " + param + unit
	case "max":
		return "Must be at most " + param + unit
	case "len":
		return "Must be exactly " + param + " characters"
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + param
	case "datetime":
		if name, ok := dateLayouts[param]; ok {
			param = name
		}
		return "Must be a date formatted as " + param
	}
	return "Invalid value"
}
