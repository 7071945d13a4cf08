//go:build !cgo

package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultWithoutEngine(t *testing.T) {
	r, err := NewDefault()
	assert.Nil(t, r)
	assert.ErrorIs(t, err, ErrUnsupportedEnvironment)
}
