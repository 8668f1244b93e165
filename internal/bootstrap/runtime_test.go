package bootstrap

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/sessionauth/mail"
)

func TestNewMailerLogsWithoutHost(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	sender, err := newMailer(mail.SMTPConfig{}, logger)
	require.NoError(t, err)

	msg, err := mail.ActivationMessage("Example", "https://example.com/", "a@example.com", "alice", "k3y")
	require.NoError(t, err)
	require.NoError(t, sender.Send(context.Background(), msg))
	require.Contains(t, buf.String(), `"to":"a@example.com"`)

	require.ErrorIs(t, sender.Send(context.Background(), mail.Message{}), mail.ErrNoRecipient)
}

func TestConnectRedisFallsBackToEmbedded(t *testing.T) {
	var closers []func()
	t.Cleanup(func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	})

	client, err := connectRedis(context.Background(), "", slog.New(slog.DiscardHandler), &closers)
	require.NoError(t, err)
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	require.Len(t, closers, 2)
}

func TestConnectRedisRejectsBadURL(t *testing.T) {
	var closers []func()
	_, err := connectRedis(context.Background(), "ftp://nowhere", slog.New(slog.DiscardHandler), &closers)
	require.ErrorContains(t, err, "parse redis url")
}
