package mail

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActivationLink(t *testing.T) {
	link, err := ActivationLink("https://example.com/app", "alice", "AbC123")
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	require.Equal(t, "/app", u.Path)
	require.Equal(t, "activate", u.Query().Get("page"))
	require.Equal(t, "alice", u.Query().Get("username"))
	require.Equal(t, "AbC123", u.Query().Get("key"))
}

func TestActivationMessageEscapesUsername(t *testing.T) {
	msg, err := ActivationMessage("Example", "https://example.com/", "a@example.com", "<b>x</b>", "KEY")
	require.NoError(t, err)
	require.Equal(t, "Example", msg.Subject)
	require.Equal(t, "a@example.com", msg.To)
	require.NotContains(t, msg.HTMLBody, "<b>x</b>")
	require.Contains(t, msg.HTMLBody, "key=KEY")
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Send(context.Background(), Message{To: "a@example.com", Subject: "s"}))
	require.ErrorIs(t, r.Send(context.Background(), Message{}), ErrNoRecipient)
	require.Len(t, r.Sent(), 1)

	r.Err = errors.New("relay down")
	require.Error(t, r.Send(context.Background(), Message{To: "a@example.com"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, r.Send(ctx, Message{To: "a@example.com"}), context.Canceled)
}

func TestBuildMessage(t *testing.T) {
	m, err := buildMessage("noreply@example.com", Message{To: "a@example.com", Subject: "Site", HTMLBody: "<p>hi</p>"})
	require.NoError(t, err)
	require.NotNil(t, m)

	_, err = buildMessage("noreply@example.com", Message{})
	require.ErrorIs(t, err, ErrNoRecipient)

	_, err = buildMessage("not an address", Message{To: "a@example.com"})
	require.Error(t, err)
}

func TestNewSMTPSenderValidates(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{From: "noreply@example.com"})
	require.Error(t, err)
	_, err = NewSMTPSender(SMTPConfig{Host: "localhost"})
	require.Error(t, err)

	s, err := NewSMTPSender(SMTPConfig{Host: "localhost", Port: 2525, From: "noreply@example.com"})
	require.NoError(t, err)
	require.True(t, strings.Contains(s.cfg.From, "@"))
}
