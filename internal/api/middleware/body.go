package middleware

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxBytesBody caps a request body that declared no Content-Length.
// Reading past the cap fails the bind with http.MaxBytesError, which
// handlers translate to 413.
func maxBytesBody(c *gin.Context, maxBytes int64) io.ReadCloser {
	return http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
}

// IsBodyTooLarge reports whether a bind error came from the body cap.
func IsBodyTooLarge(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*http.MaxBytesError); ok {
		return true
	}
	// MaxBytesError can be wrapped by the JSON decoder.
	return err.Error() == "http: request body too large"
}
