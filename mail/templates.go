package mail

import (
	"bytes"
	"html/template"
)

var (
	verifyEmailHTML = template.Must(template.New("verify").Parse(
		`<!doctype html><html><body>` +
			`<h1>Verify your email</h1>` +
			`<p>Click the link below to confirm this address.</p>` +
			`<p><a href="{{.URL}}">Verify email</a></p>` +
			`</body></html>`))

	passwordResetHTML = template.Must(template.New("reset").Parse(
		`<!doctype html><html><body>` +
			`<h1>Reset your password</h1>` +
			`<p>Someone asked to reset the password for this account. The link expires in one hour.</p>` +
			`<p><a href="{{.URL}}">Reset password</a></p>` +
			`<p>If this wasn't you, ignore this email.</p>` +
			`</body></html>`))
)

// VerifyEmail renders the email verification message for to.
func VerifyEmail(to, url string) (Message, error) {
	html, err := render(verifyEmailHTML, url)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: "Verify Email Address",
		Text:    "Click on the link to verify your email address: " + url,
		HTML:    html,
	}, nil
}

// PasswordReset renders the password reset message for to.
func PasswordReset(to, url string) (Message, error) {
	html, err := render(passwordResetHTML, url)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: "Password Reset Request",
		Text:    "You requested a password reset. Click on the link to reset your password: " + url,
		HTML:    html,
	}, nil
}

func render(t *template.Template, url string) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, struct{ URL string }{URL: url}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
