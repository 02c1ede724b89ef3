package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TimestampLayout is the server-local timestamp format stored on notifications.
const TimestampLayout = "2006-01-02 15:04:05"

// User represents a registered account
type User struct {
	Email    string `json:"email"`    // Unique login
	Password string `json:"password"` // Stored and compared as plaintext
	Code     any    `json:"code"`     // Student code linked at registration, kept as sent
}

// Student is an open-ended student record. It always carries a "code" field.
type Student map[string]any

// Code returns the collection key of the record and whether it is usable.
// Strings are used as-is, numbers by their shortest textual form.
func (s Student) Code() (string, bool) {
	return CodeKey(s["code"])
}

// CodeKey converts a decoded JSON value into a student collection key.
func CodeKey(v any) (string, bool) {
	switch code := v.(type) {
	case string:
		return code, code != ""
	case float64:
		if code == 0 {
			return "", false
		}
		return strconv.FormatFloat(code, 'f', -1, 64), true
	case json.Number:
		if f, err := code.Float64(); err == nil && f == 0 {
			return "", false
		}
		return code.String(), true
	default:
		return "", false
	}
}

// Notification is one entry of the organizer inbox. Clients address entries by
// their position in the collection, so entries carry no identifier.
type Notification struct {
	StudentCode string `json:"studentCode"`
	Message     string `json:"message"`
	Timestamp   string `json:"timestamp"`
	Response    any    `json:"response,omitempty"`
	Paid        *bool  `json:"paid,omitempty"`

	// Extra keeps any additional fields posted with the notification.
	Extra map[string]json.RawMessage `json:"-"`
}

var notificationFields = map[string]bool{
	"studentCode": true,
	"message":     true,
	"timestamp":   true,
	"response":    true,
	"paid":        true,
}

// UnmarshalJSON decodes the known fields and keeps every other field in Extra.
// A known field holding a value of another JSON type is kept in Extra as well,
// so entries written by other clients survive a rewrite unchanged.
func (n *Notification) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Notification
	for key, value := range raw {
		if notificationFields[key] && string(value) != "null" && out.decodeKnown(key, value) == nil {
			continue
		}
		if out.Extra == nil {
			out.Extra = make(map[string]json.RawMessage)
		}
		out.Extra[key] = value
	}

	*n = out
	return nil
}

func (n *Notification) decodeKnown(key string, value json.RawMessage) error {
	switch key {
	case "studentCode":
		return decodeField(value, &n.StudentCode)
	case "message":
		return decodeField(value, &n.Message)
	case "timestamp":
		return decodeField(value, &n.Timestamp)
	case "response":
		return decodeField(value, &n.Response)
	case "paid":
		var paid bool
		if err := decodeField(value, &paid); err != nil {
			return err
		}
		n.Paid = &paid
	}
	return nil
}

// MarshalJSON writes the known fields merged with Extra. A known field kept in
// Extra is written back as it was read.
func (n Notification) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(n.Extra)+5)
	for key, value := range n.Extra {
		fields[key] = value
	}
	setDefault := func(key string, value any) {
		if _, ok := fields[key]; !ok {
			fields[key] = value
		}
	}
	setDefault("studentCode", n.StudentCode)
	setDefault("message", n.Message)
	setDefault("timestamp", n.Timestamp)
	if n.Response != nil {
		setDefault("response", n.Response)
	}
	if n.Paid != nil {
		setDefault("paid", *n.Paid)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fields); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// IsPaid reports whether the notification payment was confirmed.
func (n Notification) IsPaid() bool {
	return n.Paid != nil && *n.Paid
}

// Stamp sets the notification timestamp from t.
func (n *Notification) Stamp(t time.Time) {
	delete(n.Extra, "timestamp")
	n.Timestamp = t.Format(TimestampLayout)
}

// SetResponse replaces the organizer response.
func (n *Notification) SetResponse(response any) {
	delete(n.Extra, "response")
	n.Response = response
}

// MarkPaid flags the notification as paid.
func (n *Notification) MarkPaid() {
	delete(n.Extra, "paid")
	paid := true
	n.Paid = &paid
}

// StudentCodeKey returns the student code as text, including codes stored as
// numbers by other clients.
func (n Notification) StudentCodeKey() (string, bool) {
	if n.StudentCode != "" {
		return n.StudentCode, true
	}
	raw, ok := n.Extra["studentCode"]
	if !ok {
		return "", false
	}
	var v any
	if err := decodeField(raw, &v); err != nil {
		return "", false
	}
	return CodeKey(v)
}

// decodeField decodes one raw value, keeping numbers exact.
func decodeField(value json.RawMessage, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode field: %w", err)
	}
	return nil
}
