package cache

import (
	"bytes"
	"net/http"
)

// responseBuffer wraps an http.ResponseWriter, capturing the body and status
// so the middleware can decide whether the response is worth caching.
type responseBuffer struct {
	writer http.ResponseWriter
	body   *bytes.Buffer
	status int
}

func newResponseBuffer(w http.ResponseWriter) *responseBuffer {
	return &responseBuffer{
		writer: w,
		body:   new(bytes.Buffer),
		status: http.StatusOK,
	}
}

func (rb *responseBuffer) Header() http.Header {
	return rb.writer.Header()
}

func (rb *responseBuffer) Write(data []byte) (int, error) {
	rb.body.Write(data)
	return rb.writer.Write(data)
}

func (rb *responseBuffer) WriteHeader(statusCode int) {
	rb.status = statusCode
	rb.writer.WriteHeader(statusCode)
}
