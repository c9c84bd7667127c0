package router

import (
	"errors"
	"net/http"

	"github.com/go-training/cvgen-relay/pkg/relay"

	"github.com/gin-gonic/gin"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{relay.ErrMissingCode, http.StatusBadRequest},
	{relay.ErrInvalidState, http.StatusBadRequest},
	{relay.ErrUnauthorized, http.StatusUnauthorized},
	{relay.ErrExchangeFailed, http.StatusInternalServerError},
	{relay.ErrFetchFailed, http.StatusInternalServerError},
	{relay.ErrSessionFailed, http.StatusInternalServerError},
	{relay.ErrLogoutFailed, http.StatusInternalServerError},
}

// writeError maps err onto a status and a generic message. The wrapped
// cause is only exposed as details when debug is set.
func writeError(c *gin.Context, err error, debug bool) {
	status, msg := http.StatusInternalServerError, "internal server error"
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			status, msg = e.status, e.err.Error()
			break
		}
	}

	body := gin.H{"error": msg}
	if debug && err.Error() != msg {
		body["details"] = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}
