package apiflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Response is a fully read HTTP response. Deduplicated callers receive the
// same *Response and must treat it as read-only.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Request is the descriptor that produced this response.
	Request *Descriptor
	// Attempts is the number of dispatches it took to obtain this response.
	Attempts int
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if r == nil {
		return fmt.Errorf("decode: nil response")
	}
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return fmt.Errorf("decode: empty body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// String returns the body as text.
func (r *Response) String() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

func readResponse(resp *http.Response) (*Response, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}
