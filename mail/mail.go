// Package mail sends the activation message produced at registration.
//
// The engine depends only on [Sender]. [SMTPSender] delivers through an SMTP
// relay; [Recorder] keeps messages in memory for tests and development.
package mail

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/url"
	"sync"
)

// Message is a single outbound mail.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Sender delivers a message. Implementations must honour ctx cancellation.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ErrNoRecipient is returned when a message has no To address.
var ErrNoRecipient = errors.New("mail: empty recipient")

var activationTemplate = template.Must(template.New("activation").Parse(`<html>
<body>
<p>Hello {{.Username}},</p>
<p>Thank you for registering at {{.SiteName}}. To activate your account, follow the link below:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>If you did not register, ignore this message.</p>
</body>
</html>
`))

// ActivationLink builds <base>?page=activate&username=<u>&key=<k>.
func ActivationLink(baseURL, username, key string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("page", "activate")
	q.Set("username", username)
	q.Set("key", key)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ActivationMessage renders the activation mail. The subject is the site name.
func ActivationMessage(siteName, baseURL, to, username, key string) (Message, error) {
	link, err := ActivationLink(baseURL, username, key)
	if err != nil {
		return Message{}, err
	}

	var body bytes.Buffer
	err = activationTemplate.Execute(&body, struct {
		Username string
		SiteName string
		Link     string
	}{username, siteName, link})
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:       to,
		Subject:  siteName,
		HTMLBody: body.String(),
	}, nil
}

// Recorder is an in-memory Sender. Set Err to make every Send fail.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

func (r *Recorder) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if msg.To == "" {
		return ErrNoRecipient
	}
	r.sent = append(r.sent, msg)
	return nil
}

// Sent returns a copy of the delivered messages.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.sent))
	copy(out, r.sent)
	return out
}
