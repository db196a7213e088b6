package errors

import (
	"fmt"
	"io/fs"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeValidation, http.StatusBadRequest},
		{CodeWatchSetup, http.StatusUnprocessableEntity},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeInternal, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestError_IsMatchesCode(t *testing.T) {
	err := NotFoundf("kit not found: %s", "a.md")

	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrValidation))
	assert.Equal(t, "kit not found: a.md", err.Error())
}

func TestWrap_KeepsCause(t *testing.T) {
	err := Wrapf(fs.ErrPermission, CodeInternal, "failed to read %s", "/p")

	assert.True(t, Is(err, fs.ErrPermission))
	assert.True(t, Is(err, ErrInternal))
	assert.Equal(t, "failed to read /p: permission denied", err.Error())

	wrapped := fmt.Errorf("outer: %w", err)
	var domainErr *Error
	assert.True(t, As(wrapped, &domainErr))
	assert.Equal(t, CodeInternal, domainErr.Code)
}

func TestWithDetails(t *testing.T) {
	base := Wrap(fs.ErrNotExist, CodeWatchSetup, "cannot watch")
	detailed := base.WithDetails(map[string]string{"root": "/p"})

	assert.Nil(t, base.Details)
	assert.Equal(t, map[string]string{"root": "/p"}, detailed.Details)
	assert.True(t, Is(detailed, fs.ErrNotExist))
	assert.Equal(t, http.StatusUnprocessableEntity, detailed.HTTPStatus())
}

func TestValidationWithDetails(t *testing.T) {
	err := ValidationWithDetails("bad input", []string{"name is required"})
	assert.Equal(t, CodeValidation, err.Code)
	assert.Equal(t, []string{"name is required"}, err.Details)
}
