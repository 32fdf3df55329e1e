package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "context"))
	assert.Nil(t, WrapErrorf(nil, "context %d", 1))
	assert.Nil(t, ErrorWrapOrNil(nil, "context"))

	base := errors.New("boom")
	err := WrapErrorf(base, "fetching record %s", "rec1")
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "fetching record rec1: boom", err.Error())
}
