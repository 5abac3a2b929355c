package router

import (
	"fmt"
	"net/http"
)

// contentType is the fixed Content-Type of every envelope.
const contentType = "text/plain; charset=utf-8"

// Response is the minimal success/error envelope written back to the caller:
// a status line, Content-Type, Content-Length and the payload. No chunked
// encoding or keep-alive negotiation happens at this layer.
type Response struct {
	Status int
	Body   []byte
}

// Bytes renders the response into its wire form.
func (r Response) Bytes() []byte {
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}

	header := fmt.Sprintf("HTTP/1.1 %d %s\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n",
		status, http.StatusText(status), contentType, len(r.Body))

	return append([]byte(header), r.Body...)
}

// ok wraps a payload in a 200 envelope.
func ok(body []byte) Response {
	return Response{Status: http.StatusOK, Body: body}
}

// fault wraps an error message in an error-status envelope.
func fault(status int, message string) Response {
	return Response{Status: status, Body: []byte(message + "\n")}
}
