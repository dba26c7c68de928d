package response

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestGetValidationErrors(t *testing.T) {
	type req struct {
		URL       string `json:"originalUrl" validate:"required,url"`
		Validity  int    `json:"validity" validate:"omitempty,gt=0"`
		ShortCode string `json:"shortcode" validate:"omitempty,alphanum,min=5,max=7"`
	}

	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	tests := []struct {
		name string
		req  req
		want []ValidationError
	}{
		{
			name: "valid request",
			req:  req{URL: "https://example.com"},
		},
		{
			name: "missing url",
			req:  req{},
			want: []ValidationError{
				{Field: "originalUrl", Value: "", Issue: "This field is required."},
			},
		},
		{
			name: "several errors",
			req: req{
				URL:       "not url",
				Validity:  -5,
				ShortCode: "ab-c",
			},
			want: []ValidationError{
				{Field: "originalUrl", Value: "not url", Issue: "Invalid url."},
				{Field: "validity", Value: -5, Issue: "Must be a positive number."},
				{Field: "shortcode", Value: "ab-c", Issue: "Only letters and digits are allowed."},
			},
		},
		{
			name: "short code too long",
			req: req{
				URL:       "https://example.com",
				ShortCode: "abcdefgh",
			},
			want: []ValidationError{
				{Field: "shortcode", Value: "abcdefgh", Issue: "Length must be between 5 and 7."},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.req)
			got := getValidationErrors(err)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidation(t *testing.T) {
	t.Run("not a validation error", func(t *testing.T) {
		resp := Validation(errors.New("boom"))

		assert.Equal(t, "Validation failed", resp.Error)
		assert.Empty(t, resp.Details)
	})
}
