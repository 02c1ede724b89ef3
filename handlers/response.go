package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	jsonContentType = "application/json; charset=utf-8"
)

var errMissingContentLength = errors.New("missing content length")

// writeJSON encodes payload before touching the response, so an encoding
// failure can still be reported as a clean 500.
func writeJSON(c *gin.Context, status int, payload any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		c.Error(err) //nolint:errcheck
		c.Data(http.StatusInternalServerError, jsonContentType,
			[]byte(`{"status":"error","message":"Internal Server Error during response encoding"}`))
		return
	}
	c.Data(status, jsonContentType, buf.Bytes())
}

func respondSuccess(c *gin.Context, message string) {
	writeJSON(c, http.StatusOK, gin.H{"status": statusSuccess, "message": message})
}

func respondError(c *gin.Context, status int, message string) {
	writeJSON(c, status, gin.H{"status": statusError, "message": message})
}

// readJSON decodes a POST body into dst. The body must declare its length;
// chunked uploads are rejected.
func readJSON(c *gin.Context, dst any) error {
	if c.Request.ContentLength < 0 {
		return errMissingContentLength
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, c.Request.ContentLength))
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("failed to decode body: %w", err)
	}
	return nil
}

// isBlank mirrors the "value not provided" rule of the API: null, false, zero,
// and empty strings, arrays or objects all count as missing.
func isBlank(v any) bool {
	switch value := v.(type) {
	case nil:
		return true
	case bool:
		return !value
	case string:
		return value == ""
	case json.Number:
		f, err := value.Float64()
		return err == nil && f == 0
	case float64:
		return value == 0
	case []any:
		return len(value) == 0
	case map[string]any:
		return len(value) == 0
	}
	return false
}
