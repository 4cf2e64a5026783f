package apierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("fetch profile: %w", AuthorizationLost(401, "token expired"))

	assert.Equal(t, KindAuthorizationLost, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, ErrAuthorizationLost))
	assert.False(t, errors.Is(wrapped, ErrValidation))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, IsKind(nil, KindInternal))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Credenciales inválidas", Message(Validation("Credenciales inválidas")))
	assert.Equal(t, "boom", Message(errors.New("boom")))
	assert.Equal(t, "", Message(nil))
}

func TestErrorString(t *testing.T) {
	err := Transport("dial failed", errors.New("connection refused"))
	assert.Equal(t, "transport: dial failed: connection refused", err.Error())
	assert.ErrorIs(t, err, ErrTransport)
}
