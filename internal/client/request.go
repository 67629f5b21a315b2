package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Akansha-Mulchandani/GAIA/internal/core"
)

// RequestIDHeader correlates a mutating call with backend logs.
const RequestIDHeader = "X-Request-Id"

// Request describes an outgoing backend call. The zero value is a GET with
// no headers and no body. Body is a byte slice so every retry attempt can
// resend it.
type Request struct {
	Method string
	Header http.Header
	Body   []byte
}

// NewJSONRequest encodes v as the body of a request with the given method.
func NewJSONRequest(method string, v any) (*Request, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	return &Request{Method: method, Body: body}, nil
}

// method returns the upper-cased method, defaulting to GET.
func (r *Request) method() string {
	if r == nil || r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// headers applies the header rules: GET headers pass through unmodified;
// any other method gets a JSON Content-Type and a request id unless the
// caller set them.
func (r *Request) headers() http.Header {
	var h http.Header
	if r != nil && r.Header != nil {
		h = r.Header.Clone()
	} else {
		h = http.Header{}
	}
	if r.method() == http.MethodGet {
		return h
	}
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}
	if h.Get(RequestIDHeader) == "" {
		h.Set(RequestIDHeader, core.NewRequestID())
	}
	return h
}

func (r *Request) body() io.Reader {
	if r == nil || len(r.Body) == 0 {
		return nil
	}
	return bytes.NewReader(r.Body)
}

// Response is a successful (2xx) backend response with its body read.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
