package autherr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPool(t *testing.T) {
	tests := []struct {
		code string
		want Kind
	}{
		{"NotAuthorizedException", KindInvalidCredentials},
		{"UserNotFoundException", KindUserNotFound},
		{"UserNotConfirmedException", KindUserNotConfirmed},
		{"TooManyRequestsException", KindRateLimited},
		{"InvalidParameterException", KindInvalidParameters},
		{"UsernameExistsException", KindUsernameTaken},
		{"InternalErrorException", KindUnknown},
		{"SomethingNewException", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := ClassifyPool(tt.code, "details", nil)
			require.NotNil(t, err)
			assert.Equal(t, tt.want, err.Kind)
			assert.Equal(t, "details", err.Message)
		})
	}
}

func TestClassifyPoolFallbackMessage(t *testing.T) {
	err := ClassifyPool("WeirdException", "", nil)
	assert.Equal(t, KindUnknown, err.Kind)
	assert.Equal(t, "WeirdException", err.Message, "unknown codes surface the code when no message came back")
}

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := New(KindInvalidCredentials, "wrong password")

	assert.ErrorIs(t, err, New(KindInvalidCredentials, ""))
	assert.NotErrorIs(t, err, New(KindUserNotFound, ""))

	wrapped := fmt.Errorf("sign in: %w", err)
	assert.ErrorIs(t, wrapped, New(KindInvalidCredentials, ""))
}

func TestWrapRetainsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindUnknown, "transport failure", cause)

	assert.ErrorIs(t, err, cause)

	var target *Error
	require.ErrorAs(t, err, &target)
	assert.Equal(t, KindUnknown, target.Kind)
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "invalid_credentials: wrong password",
		New(KindInvalidCredentials, "wrong password").Error())
	assert.Equal(t, "unknown", New(KindUnknown, "").Error())
}
