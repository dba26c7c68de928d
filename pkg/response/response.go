// Package response holds the JSON error bodies returned by the HTTP API.
package response

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details []ValidationError `json:"details,omitempty"`
}

type ValidationError struct {
	Field string `json:"field"`
	Value any    `json:"value"`
	Issue string `json:"issue"`
}

var (
	EmptyRequestBody   = ErrorResponse{Error: "Request body is empty"}
	InvalidRequestBody = ErrorResponse{Error: "Invalid request body"}
	ShortURLNotFound   = ErrorResponse{Error: "Short URL not found"}
	ShortURLExpired    = ErrorResponse{Error: "Link has expired"}
	ShortCodeInUse     = ErrorResponse{Error: "Requested shortcode already exists"}
	InvalidShortCode   = ErrorResponse{Error: "Shortcode must be 5-7 alphanumeric characters"}
	ServerError        = ErrorResponse{Error: "Internal server error"}
)

func issueForTag(tag string) string {
	switch tag {
	case "required":
		return "This field is required."
	case "url", "http_url":
		return "Invalid url."
	case "alphanum":
		return "Only letters and digits are allowed."
	case "min", "max":
		return "Length must be between 5 and 7."
	case "gt":
		return "Must be a positive number."
	default:
		return "Invalid value."
	}
}

func getValidationErrors(err error) []ValidationError {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}

	details := make([]ValidationError, 0, len(errs))
	for _, e := range errs {
		details = append(details, ValidationError{
			Field: e.Field(),
			Value: e.Value(),
			Issue: issueForTag(e.Tag()),
		})
	}

	return details
}

// Validation builds a 400 body listing every failed field.
func Validation(err error) ErrorResponse {
	return ErrorResponse{
		Error:   "Validation failed",
		Details: getValidationErrors(err),
	}
}
