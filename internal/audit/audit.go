package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event codes written to the activity log.
const (
	CodeLoginSuccess      = "AUTH_LOGIN_SUCCESS"
	CodeLoginFail         = "AUTH_LOGIN_FAIL"
	CodeLogout            = "AUTH_LOGOUT"
	CodeCheckSession      = "AUTH_CHECKSESSION"
	CodeRegisterSuccess   = "AUTH_REGISTER_SUCCESS"
	CodeRegisterFail      = "AUTH_REGISTER_FAIL"
	CodeActivateSuccess   = "AUTH_ACTIVATE_SUCCESS"
	CodeChangePassSuccess = "AUTH_CHANGEPASS_SUCCESS"
	CodeChangePassFail    = "AUTH_CHANGEPASS_FAIL"
)

// Guest is recorded in place of a username that is empty or not a plausible
// account name.
const Guest = "GUEST"

// Record is one activity log entry.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Username  string    `json:"username"`
	Code      string    `json:"code"`
	Detail    string    `json:"detail,omitempty"`
	Origin    string    `json:"origin,omitempty"`
}

// Sink appends activity records. Append is synchronous: when it returns nil
// the record is durable as far as the sink can tell.
type Sink interface {
	Append(ctx context.Context, record Record) error
}

// NoOpSink drops records.
type NoOpSink struct{}

func (NoOpSink) Append(context.Context, Record) error { return nil }

// ChannelSink writes records into a buffered channel, blocking while it is full.
type ChannelSink struct {
	records chan Record
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		records: make(chan Record, buffer),
	}
}

func (s *ChannelSink) Append(ctx context.Context, record Record) error {
	select {
	case s.records <- record:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChannelSink) Records() <-chan Record {
	return s.records
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Append(_ context.Context, record Record) error {
	if s == nil || s.writer == nil {
		return nil
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.writer.Write(data)
	return err
}
