package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=8"`
	Method   string   `json:"payment_method" validate:"omitempty,oneof=credit_card paypal"`
	Items    []string `json:"items" validate:"omitempty,min=1"`
	Quantity int      `json:"quantity" validate:"gte=0"`
}

func TestStruct(t *testing.T) {
	testCases := []struct {
		name     string
		input    registerRequest
		expected []string
	}{
		{
			name:  "Valid",
			input: registerRequest{Email: "a@b.fr", Password: "longenough"},
		},
		{
			name:     "Missing fields use json names",
			input:    registerRequest{},
			expected: []string{"email is required", "password is required"},
		},
		{
			name:     "Bad email and short password",
			input:    registerRequest{Email: "nope", Password: "short"},
			expected: []string{"email must be a valid email address", "password must be at least 8 characters"},
		},
		{
			name:     "Oneof",
			input:    registerRequest{Email: "a@b.fr", Password: "longenough", Method: "cash"},
			expected: []string{"payment_method must be one of: credit_card paypal"},
		},
		{
			name:     "Numeric bound",
			input:    registerRequest{Email: "a@b.fr", Password: "longenough", Quantity: -1},
			expected: []string{"quantity must be greater than or equal to 0"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Struct(&tc.input)
			if tc.expected == nil {
				assert.NoError(t, err)
				return
			}

			var errs Errors
			require.ErrorAs(t, err, &errs)
			messages := make([]string, len(errs))
			for i, fe := range errs {
				messages[i] = fe.Message
			}
			assert.Equal(t, tc.expected, messages)
		})
	}
}

func TestErrorsJoinsMessages(t *testing.T) {
	err := Errors{
		{Field: "email", Tag: "required", Message: "email is required"},
		{Field: "password", Tag: "required", Message: "password is required"},
	}
	assert.Equal(t, "email is required; password is required", err.Error())
}
