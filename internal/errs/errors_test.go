package errs

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOfWrappedError(t *testing.T) {
	base := Persistence(errors.New("disk full"), "save message %s", "m1")
	wrapped := errors.Wrap(base, "ingest")

	assert.Equal(t, KindPersistence, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindPersistence))
	assert.Contains(t, wrapped.Error(), "disk full")
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.False(t, Is(nil, KindInternal))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		Validation("name is required"):        http.StatusBadRequest,
		NotFound("instance %s not found", "x"): http.StatusNotFound,
		AlreadyExists("i1"):                    http.StatusConflict,
		Capacity(3):                            http.StatusTooManyRequests,
		Protocol(errors.New("socket"), "send"): http.StatusInternalServerError,
	}
	for err, status := range cases {
		assert.Equal(t, status, KindOf(err).HTTPStatus(), err.Error())
	}
}
