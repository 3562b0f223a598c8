package httpclient

import (
	"io"
	"net/http"
)

// Request is one outgoing request. Headers override the client defaults.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    io.Reader
}

// Response is a response whose body has been read in full.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// FinalURL is the URL after redirects
	FinalURL string
}

// ContentType returns the Content-Type header.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// Document is a resource downloaded with a success status and a non-empty body.
type Document struct {
	Content     []byte
	ContentType string
	FinalURL    string
}
