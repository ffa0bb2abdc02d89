package httpclient

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"reflect"
	"strings"

	json "github.com/goccy/go-json"
)

// BodyKind tells how a successful response body was interpreted.
type BodyKind int

const (
	// BodyText is a body kept as raw text.
	BodyText BodyKind = iota
	// BodyStructured is a body that was declared as JSON and parsed as JSON.
	BodyStructured
)

func (k BodyKind) String() string {
	if k == BodyStructured {
		return "structured"
	}
	return "text"
}

// Payload is the fully-read body of a successful (2xx) response.
//
// A Payload is Structured when the response declared a JSON content type
// (application/json or any +json suffix) and the body parsed as JSON. In
// every other case, including a JSON content type with a malformed body, it
// is Text. Parsing never turns a successful response into an error.
type Payload struct {
	// StatusCode is the 2xx status the server answered with.
	StatusCode int
	// Header holds the response headers.
	Header http.Header

	raw  []byte
	kind BodyKind
}

func newPayload(status int, header http.Header, body []byte) *Payload {
	kind := BodyText
	if isJSONContentType(header.Get("Content-Type")) && json.Valid(body) {
		kind = BodyStructured
	}
	return &Payload{
		StatusCode: status,
		Header:     header,
		raw:        body,
		kind:       kind,
	}
}

// Kind reports whether the body is structured or text.
func (p *Payload) Kind() BodyKind { return p.kind }

// IsStructured is shorthand for Kind() == BodyStructured.
func (p *Payload) IsStructured() bool { return p.kind == BodyStructured }

// Bytes returns the raw body.
func (p *Payload) Bytes() []byte { return p.raw }

// Text returns the raw body as a string.
func (p *Payload) Text() string { return string(p.raw) }

// Decode unmarshals a structured body into v.
func (p *Payload) Decode(v any) error {
	if !p.IsStructured() {
		return errors.New("httpclient: payload is not structured")
	}
	return json.Unmarshal(p.raw, v)
}

// Value returns the body as a generic value: the parsed JSON value
// (map[string]any, []any, float64, ...) when structured, the text otherwise.
func (p *Payload) Value() any {
	if p.IsStructured() {
		var v any
		if err := json.Unmarshal(p.raw, &v); err == nil {
			return v
		}
	}
	return p.Text()
}

// decodePayload converts p into T. string, []byte, any and *Payload targets
// accept any body; other types require a structured body, except that an
// empty body yields T's zero value.
func decodePayload[T any](p *Payload) (T, error) {
	var out T
	switch target := any(&out).(type) {
	case *string:
		if p.IsStructured() && json.Unmarshal(p.raw, target) == nil {
			return out, nil
		}
		*target = p.Text()
		return out, nil
	case *[]byte:
		*target = p.Bytes()
		return out, nil
	case *any:
		*target = p.Value()
		return out, nil
	case **Payload:
		*target = p
		return out, nil
	}

	if len(p.raw) == 0 {
		return out, nil
	}
	if !p.IsStructured() {
		return out, &DecodeError{
			Payload: p,
			Target:  typeName[T](),
			Err:     fmt.Errorf("body is %s (content type %q)", p.kind, p.Header.Get("Content-Type")),
		}
	}
	if err := json.Unmarshal(p.raw, &out); err != nil {
		return out, &DecodeError{Payload: p, Target: typeName[T](), Err: err}
	}
	return out, nil
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

// parseErrorBody interprets a non-2xx body: JSON when it parses, raw text
// otherwise. The declared content type is not consulted.
func parseErrorBody(body []byte) any {
	if len(body) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return string(body)
}

func isJSONContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
