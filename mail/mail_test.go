package mail

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/resend/resend-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmails struct {
	got *resend.SendEmailRequest
	err error
}

func (f *fakeEmails) SendWithContext(_ context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.got = params
	if f.err != nil {
		return nil, f.err
	}
	return &resend.SendEmailResponse{Id: "msg_123"}, nil
}

func TestLogMailerLogsAndReturnsID(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer(slog.New(slog.NewJSONHandler(&buf, nil)))

	id, err := m.Send(context.Background(), Message{To: "alice@example.com", Subject: "hi", Text: "body"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Contains(t, buf.String(), `"to":"alice@example.com"`)

	_, err = m.Send(context.Background(), Message{})
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestResendMailerSend(t *testing.T) {
	fake := &fakeEmails{}
	m := &ResendMailer{emails: fake, from: "auth@example.com"}

	id, err := m.Send(context.Background(), Message{To: "alice@example.com", Subject: "s", Text: "t", HTML: "<p>h</p>"})
	require.NoError(t, err)
	assert.Equal(t, "msg_123", id)
	assert.Equal(t, "auth@example.com", fake.got.From)
	assert.Equal(t, []string{"alice@example.com"}, fake.got.To)
	assert.Equal(t, "<p>h</p>", fake.got.Html)
}

func TestResendMailerRedirect(t *testing.T) {
	fake := &fakeEmails{}
	m := &ResendMailer{emails: fake, from: "auth@example.com", redirectTo: "delivered@resend.dev"}

	_, err := m.Send(context.Background(), Message{To: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"delivered@resend.dev"}, fake.got.To)
}

func TestResendMailerError(t *testing.T) {
	m := &ResendMailer{emails: &fakeEmails{err: errors.New("boom")}, from: "auth@example.com"}
	_, err := m.Send(context.Background(), Message{To: "alice@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestNewResendMailerValidates(t *testing.T) {
	_, err := NewResendMailer(ResendConfig{From: "a@b.c"})
	assert.Error(t, err)
	_, err = NewResendMailer(ResendConfig{APIKey: "re_x"})
	assert.Error(t, err)
	m, err := NewResendMailer(ResendConfig{APIKey: "re_x", From: "a@b.c"})
	require.NoError(t, err)
	assert.NotNil(t, m.emails)
}

func TestTemplatesEscapeURL(t *testing.T) {
	msg, err := PasswordReset("alice@example.com", `https://app.example.com/password/reset?code=abc&exp=1`)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Contains(t, msg.Text, "code=abc&exp=1")
	assert.Contains(t, msg.HTML, "code=abc&amp;exp=1")

	msg, err = VerifyEmail("alice@example.com", `https://app.example.com/email/verify/"><script>`)
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
}
