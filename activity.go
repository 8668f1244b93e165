package sessionauth

import (
	"io"
	"unicode/utf8"

	"github.com/MrEthical07/sessionauth/internal/audit"
)

// ActivityRecord is one activity log entry.
type ActivityRecord = audit.Record

// ActivitySink receives activity records synchronously.
type ActivitySink = audit.Sink

// ActivityGuest is recorded when the username is empty or implausible.
const ActivityGuest = audit.Guest

// Activity event codes.
const (
	ActivityLoginSuccess      = audit.CodeLoginSuccess
	ActivityLoginFail         = audit.CodeLoginFail
	ActivityLogout            = audit.CodeLogout
	ActivityCheckSession      = audit.CodeCheckSession
	ActivityRegisterSuccess   = audit.CodeRegisterSuccess
	ActivityRegisterFail      = audit.CodeRegisterFail
	ActivityActivateSuccess   = audit.CodeActivateSuccess
	ActivityChangePassSuccess = audit.CodeChangePassSuccess
	ActivityChangePassFail    = audit.CodeChangePassFail
)

// NewJSONActivitySink writes one JSON record per line to w.
func NewJSONActivitySink(w io.Writer) ActivitySink {
	return audit.NewJSONWriterSink(w)
}

// NewChannelActivitySink buffers records in a channel read through Records.
func NewChannelActivitySink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

func truncateDetail(detail string, max int) string {
	if detail == "" {
		return "none"
	}
	return truncateBytes(detail, max)
}

// truncateBytes cuts s to at most max bytes without splitting a rune.
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
