package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/provenonce/beats/internal/api/middleware"
)

var hexHashRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

// readBody drains the capped request body. A false return means the
// response has already been written.
func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		if middleware.IsBodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		}
		return nil, false
	}
	return body, true
}

// bindJSON decodes a JSON body into dst, rejecting unparseable input
// with 400. Unknown fields are tolerated; shape is validated per mode.
func bindJSON(c *gin.Context, dst interface{}) bool {
	body, ok := readBody(c)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return false
	}
	return true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func unavailable(c *gin.Context, msg string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": msg})
}
