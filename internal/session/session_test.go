package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"mapleads/internal/pace"
)

func TestClassifyNavError(t *testing.T) {
	assert.NoError(t, classifyNavError(nil))

	err := classifyNavError(errors.New("Timeout 30000ms exceeded"))
	assert.ErrorIs(t, err, pace.ErrNavigationTimeout)

	err = classifyNavError(errors.New("target closed"))
	assert.ErrorIs(t, err, pace.ErrSessionFatal)

	err = classifyNavError(errors.New("browser has been closed"))
	assert.ErrorIs(t, err, pace.ErrSessionFatal)

	plain := errors.New("net::ERR_NAME_NOT_RESOLVED")
	assert.Equal(t, plain, classifyNavError(plain))
}
