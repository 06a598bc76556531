package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("set tag: %w", Conflict("cannot update a tag set by another user"))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, Is(err, KindConflict))
	assert.False(t, Is(err, KindNotFound))

	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindInternal))
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("file missing")
	err := Fatal(cause, "schema %s not loaded", "SAEON.DataCite4")

	assert.Equal(t, "schema SAEON.DataCite4 not loaded: file missing", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestDetailOf(t *testing.T) {
	report := map[string]any{"valid": false}
	err := fmt.Errorf("wrapped: %w", Unprocessable("invalid data").WithDetail(report))

	assert.Equal(t, report, DetailOf(err))
	assert.Nil(t, DetailOf(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:      http.StatusNotFound,
		KindConflict:      http.StatusConflict,
		KindForbidden:     http.StatusForbidden,
		KindUnprocessable: http.StatusUnprocessableEntity,
		KindFatal:         http.StatusInternalServerError,
		KindInternal:      http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, HTTPStatus(kind), kind)
	}
}
