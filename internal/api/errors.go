package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies API failures.
//
// Kind implements error so callers can match with errors.Is(err, api.KindUnauthorized).
type Kind int

const (
	KindUnexpected Kind = iota
	KindNetwork
	KindUnauthorized
	KindValidation
	KindForbidden
	KindPayloadTooLarge
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindNotFound:
		return "not_found"
	default:
		return "unexpected"
	}
}

func (k Kind) Error() string { return "api: " + k.String() }

// Error is a classified API failure carrying a user-facing message.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 when no response was received
	Message string // safe to show to the user
	Err     error  // underlying transport or decode error, if any
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a Kind sentinel.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// Message returns the user-facing text for err: the API message for *Error,
// fallback otherwise.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

const networkMessage = "Unable to connect to server. Please check your connection."

// messages holds the per-endpoint user-facing texts. Empty entries fall back to Default.
type messages struct {
	Default      string
	BadRequest   string
	Unauthorized string
	Forbidden    string
	TooLarge     string
}

var (
	loginMessages = messages{
		Default:      "Login failed. Please try again.",
		BadRequest:   "Invalid credentials.",
		Unauthorized: "Invalid email or password.",
	}
	signupMessages = messages{
		Default:    "Signup failed. Please try again.",
		BadRequest: "Invalid signup data.",
	}
	profileMessages = messages{
		Default: "Failed to fetch profile",
	}
	profileUpdateMessages = messages{
		Default:    "Failed to update profile",
		BadRequest: "Invalid profile data",
	}
	listPostsMessages = messages{
		Default:      "Failed to fetch posts. Please try again.",
		Unauthorized: "You must be logged in to view posts.",
		Forbidden:    "You do not have permission to view these posts.",
	}
	createPostMessages = messages{
		Default:      "Failed to create post. Please try again.",
		BadRequest:   "Invalid post data.",
		Unauthorized: "You must be logged in to create a post.",
		TooLarge:     "File size too large. Maximum 10MB per file allowed.",
	}
	likeMessages = messages{
		Default:      "Failed to update like. Please try again.",
		Unauthorized: "You must be logged in to like posts.",
	}
	viewMessages = messages{
		Default: "Failed to record view.",
	}
)

func (m messages) pick(s string) string {
	if s != "" {
		return s
	}
	return m.Default
}

func networkError(err error) *Error {
	return &Error{Kind: KindNetwork, Message: networkMessage, Err: err}
}

// statusError classifies a non-2xx response.
func statusError(status int, body []byte, m messages) *Error {
	e := &Error{Status: status}
	switch status {
	case http.StatusBadRequest:
		e.Kind = KindValidation
		e.Message = validationMessage(body)
		if e.Message == "" {
			e.Message = m.pick(m.BadRequest)
		}
	case http.StatusUnauthorized:
		e.Kind = KindUnauthorized
		e.Message = m.pick(m.Unauthorized)
	case http.StatusForbidden:
		e.Kind = KindForbidden
		e.Message = m.pick(m.Forbidden)
	case http.StatusRequestEntityTooLarge:
		e.Kind = KindPayloadTooLarge
		e.Message = m.pick(m.TooLarge)
	case http.StatusNotFound:
		e.Kind = KindNotFound
		e.Message = m.Default
	default:
		e.Kind = KindUnexpected
		e.Message = m.Default
	}
	return e
}

// validationMessage extracts the first message of a 400 body. Object bodies
// yield the first key's first message in document order, so "detail" only
// wins when it comes first. Array bodies yield their first string.
func validationMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	switch body[0] {
	case '"':
		var s string
		if json.Unmarshal(body, &s) == nil {
			return s
		}
	case '[':
		var list []json.RawMessage
		if json.Unmarshal(body, &list) == nil && len(list) > 0 {
			return firstString(list[0])
		}
	case '{':
		if _, raw, ok := firstField(body); ok {
			return firstString(raw)
		}
	}
	return ""
}

// firstField returns the first key/value of a JSON object in document order.
// encoding/json maps lose ordering, so the object is walked with a Decoder.
func firstField(body []byte) (string, json.RawMessage, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return "", nil, false
	}
	if !dec.More() {
		return "", nil, false
	}
	tok, err := dec.Token()
	if err != nil {
		return "", nil, false
	}
	key, ok := tok.(string)
	if !ok {
		return "", nil, false
	}
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return "", nil, false
	}
	return key, raw, true
}

func firstString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
		return firstString(list[0])
	}
	return ""
}

func decodeError(err error, m messages) *Error {
	return &Error{Kind: KindUnexpected, Message: m.Default, Err: fmt.Errorf("decoding response: %w", err)}
}
