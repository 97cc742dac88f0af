package apiflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Descriptor describes one logical request. The pipeline never mutates a
// Descriptor after dispatch; headers are cloned before injection.
//
// Body is nil, a *Multipart, raw bytes ([]byte, string or io.Reader), or any
// value that encodes to JSON.
type Descriptor struct {
	Method string
	Target string
	Query  url.Values
	Body   any
	Header http.Header
}

// URL returns the target with its encoded query string.
func (d *Descriptor) URL() string {
	if len(d.Query) == 0 {
		return d.Target
	}
	sep := "?"
	if strings.Contains(d.Target, "?") {
		sep = "&"
	}
	return d.Target + sep + d.Query.Encode()
}

// normalizeBody buffers io.Reader bodies so the request can be re-sent on
// retry and on a rate-limit replay.
func (d *Descriptor) normalizeBody() error {
	r, ok := d.Body.(io.Reader)
	if !ok {
		return nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading request body: %w", err)
	}
	d.Body = data
	return nil
}

// encodeBody returns the wire body and the content type the body itself
// dictates. multipart reports that any caller supplied content type must be
// replaced.
func (d *Descriptor) encodeBody() (body []byte, contentType string, multipart bool, err error) {
	switch b := d.Body.(type) {
	case nil:
		return nil, "", false, nil
	case *Multipart:
		body, contentType, err = b.encode()
		return body, contentType, true, err
	case []byte:
		return b, "application/octet-stream", false, nil
	case string:
		return []byte(b), "text/plain; charset=utf-8", false, nil
	default:
		body, err = json.Marshal(b)
		if err != nil {
			return nil, "", false, fmt.Errorf("encoding JSON body: %w", err)
		}
		return body, "application/json", false, nil
	}
}

// Multipart is a form-data payload. Parts are held in memory so the body can
// be encoded again for every attempt.
type Multipart struct {
	fields []formField
	files  []formFile
}

type formField struct {
	name  string
	value string
}

type formFile struct {
	field    string
	filename string
	data     []byte
}

// NewMultipart returns an empty form-data payload.
func NewMultipart() *Multipart {
	return &Multipart{}
}

// AddField appends a text field.
func (m *Multipart) AddField(name, value string) *Multipart {
	m.fields = append(m.fields, formField{name: name, value: value})
	return m
}

// AddFile appends a file part.
func (m *Multipart) AddFile(field, filename string, data []byte) *Multipart {
	m.files = append(m.files, formFile{field: field, filename: filename, data: data})
	return m
}

func (m *Multipart) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range m.fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("writing form field %q: %w", f.name, err)
		}
	}
	for _, f := range m.files {
		part, err := w.CreateFormFile(f.field, f.filename)
		if err != nil {
			return nil, "", fmt.Errorf("creating form file %q: %w", f.field, err)
		}
		if _, err := part.Write(f.data); err != nil {
			return nil, "", fmt.Errorf("writing form file %q: %w", f.field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// serialize renders the parts in a stable order for fingerprinting.
func (m *Multipart) serialize() string {
	parts := make([]string, 0, len(m.fields)+len(m.files))
	for _, f := range m.fields {
		parts = append(parts, f.name+"="+f.value)
	}
	for _, f := range m.files {
		parts = append(parts, f.field+"=@"+f.filename+"#"+fmt.Sprint(len(f.data)))
	}
	sort.Strings(parts)
	return strings.Join(parts, "&")
}

// RequestOption customises a single call.
type RequestOption func(*requestSettings)

type requestSettings struct {
	desc        Descriptor
	maxAttempts int
	dedup       *bool
}

func newRequestSettings(method, target string, opts []RequestOption) *requestSettings {
	s := &requestSettings{
		desc: Descriptor{
			Method: strings.ToUpper(method),
			Target: target,
			Header: make(http.Header),
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// WithBody sets the request body. See Descriptor for accepted types.
func WithBody(body any) RequestOption {
	return func(s *requestSettings) {
		s.desc.Body = body
	}
}

// WithMultipart sends a form-data body. Any explicit Content-Type is dropped
// in favour of the boundary-bearing value.
func WithMultipart(m *Multipart) RequestOption {
	return func(s *requestSettings) {
		s.desc.Body = m
	}
}

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(s *requestSettings) {
		s.desc.Header.Set(key, value)
	}
}

// WithQuery adds a query parameter.
func WithQuery(key, value string) RequestOption {
	return func(s *requestSettings) {
		if s.desc.Query == nil {
			s.desc.Query = make(url.Values)
		}
		s.desc.Query.Add(key, value)
	}
}

// WithAttempts overrides the attempt ceiling for this call. Mutations use a
// single attempt unless this is set.
func WithAttempts(n int) RequestOption {
	return func(s *requestSettings) {
		s.maxAttempts = n
	}
}

// WithDeduplication forces this call into or out of deduplication regardless
// of the client's condition.
func WithDeduplication(enabled bool) RequestOption {
	return func(s *requestSettings) {
		s.dedup = &enabled
	}
}
