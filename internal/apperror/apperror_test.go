package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	wrapped := fmt.Errorf("find order: %w", Persistence(cause, "failed to read order"))

	assert.Equal(t, KindPersistence, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindPersistence))
	assert.ErrorIs(t, wrapped, cause)

	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.False(t, Is(nil, KindInternal))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:        http.StatusBadRequest,
		KindNotFound:          http.StatusNotFound,
		KindInvalidTransition: http.StatusConflict,
		KindTransport:         http.StatusServiceUnavailable,
		KindPersistence:       http.StatusInternalServerError,
		KindInternal:          http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), kind)
	}
}

func TestPublic(t *testing.T) {
	kind, msg := Public(NotFound("Order with id %s not found", "abc"))
	assert.Equal(t, KindNotFound, kind)
	assert.Equal(t, "Order with id abc not found", msg)

	kind, msg = Public(Persistence(errors.New("pq: password authentication failed"), "failed to create order"))
	assert.Equal(t, KindPersistence, kind)
	assert.Equal(t, "order storage unavailable", msg)

	kind, msg = Public(errors.New("nil pointer"))
	assert.Equal(t, KindInternal, kind)
	assert.Equal(t, "internal error", msg)
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "VALIDATION: bad input", Validation("bad input").Error())
	assert.Equal(t, "TRANSPORT: catalog unavailable: eof", Transport(errors.New("eof"), "catalog unavailable").Error())
}
