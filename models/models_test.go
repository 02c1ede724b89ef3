package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationKeepsExtraFields(t *testing.T) {
	in := `{"studentCode":"S1","message":"Student wants to pay.","timestamp":"2026-10-18 09:00:00","amount":120,"method":{"type":"cash"}}`

	var n Notification
	require.NoError(t, json.Unmarshal([]byte(in), &n))
	assert.Equal(t, "S1", n.StudentCode)
	assert.Nil(t, n.Paid)
	assert.Len(t, n.Extra, 2)

	out, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestNotificationOptionalFields(t *testing.T) {
	paid := true
	n := Notification{StudentCode: "S1", Timestamp: "2026-10-18 09:00:00", Response: map[string]any{"total": 20}, Paid: &paid}

	out, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{"studentCode":"S1","message":"","timestamp":"2026-10-18 09:00:00","response":{"total":20},"paid":true}`, string(out))
	assert.True(t, n.IsPaid())
	assert.False(t, Notification{}.IsPaid())
}

func TestNotificationKeepsMistypedKnownFields(t *testing.T) {
	in := `{"studentCode":42,"message":null,"timestamp":"2026-10-18 09:00:00","paid":"yes","response":{"total":12345678901234567}}`

	var n Notification
	require.NoError(t, json.Unmarshal([]byte(in), &n))
	assert.Empty(t, n.StudentCode)
	assert.False(t, n.IsPaid())
	assert.Equal(t, map[string]any{"total": json.Number("12345678901234567")}, n.Response)

	code, ok := n.StudentCodeKey()
	assert.True(t, ok)
	assert.Equal(t, "42", code)

	out, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
	assert.Contains(t, string(out), "12345678901234567")

	n.MarkPaid()
	n.SetResponse("ok")
	n.Stamp(time.Date(2026, 10, 18, 10, 0, 0, 0, time.Local))
	out, err = json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{"studentCode":42,"message":null,"timestamp":"2026-10-18 10:00:00","paid":true,"response":"ok"}`, string(out))
}

func TestNotificationStudentCodeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"studentCode":"S1"}`, "S1", true},
		{`{"studentCode":""}`, "", false},
		{`{"studentCode":0}`, "", false},
		{`{"studentCode":null}`, "", false},
		{`{"studentCode":true}`, "", false},
		{`{}`, "", false},
	}
	for _, tt := range tests {
		var n Notification
		require.NoError(t, json.Unmarshal([]byte(tt.in), &n))
		got, ok := n.StudentCodeKey()
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNotificationRejectsNonObject(t *testing.T) {
	var n Notification
	assert.Error(t, json.Unmarshal([]byte(`[]`), &n))
	assert.Error(t, json.Unmarshal([]byte(`"S1"`), &n))
}

func TestCodeKey(t *testing.T) {
	tests := []struct {
		in   any
		want string
		ok   bool
	}{
		{"S1", "S1", true},
		{"", "", false},
		{float64(123), "123", true},
		{float64(1.5), "1.5", true},
		{float64(0), "", false},
		{json.Number("42"), "42", true},
		{nil, "", false},
		{true, "", false},
		{[]any{"S1"}, "", false},
	}
	for _, tt := range tests {
		got, ok := CodeKey(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}
