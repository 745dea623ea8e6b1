package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	err := NotFound("DeleteVersion", "version")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrPermissionDenied))
	assert.Equal(t, "DeleteVersion: version not found", err.Error())

	wrapped := fmt.Errorf("handler: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestMetadataFailureKeepsTypedErrors(t *testing.T) {
	typed := PermissionDenied("AddVersion", "not a participant")
	assert.Same(t, typed, MetadataFailure("AddVersion", typed))

	cause := errors.New("connection reset")
	err := MetadataFailure("AddVersion", cause)
	assert.True(t, errors.Is(err, ErrMetadata))
	assert.True(t, errors.Is(err, cause))
}

func TestKindHTTPStatus(t *testing.T) {
	cases := map[ErrorKind]int{
		KindPermission:  http.StatusForbidden,
		KindNotFound:    http.StatusNotFound,
		KindValidation:  http.StatusBadRequest,
		KindRateLimited: http.StatusTooManyRequests,
		KindUpstream:    http.StatusBadGateway,
		KindStorage:     http.StatusInternalServerError,
		KindMetadata:    http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.HTTPStatus(), kind)
	}
	assert.Equal(t, KindMetadata, KindOf(errors.New("plain")))
}
