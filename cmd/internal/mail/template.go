package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const verificationSubject = "Verification Email"

var verificationTmpl = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8" /></head>
<body style="font-family: Arial, sans-serif; background: #f6f7fb; color: #1f2937;">
  <div style="max-width: 520px; margin: 24px auto; padding: 20px; background: #ffffff; border-radius: 12px; border: 1px solid #e5e7eb;">
    <h2 style="margin-top: 0;">{{.Product}} - Email Verification</h2>
    <p>Use the code below to verify your email address:</p>
    <div style="font-size: 28px; font-weight: bold; letter-spacing: 4px; margin: 16px 0;">{{.Code}}</div>
    <p>This code expires in {{.Minutes}} minutes. If you did not request it, you can ignore this email.</p>
  </div>
</body>
</html>`))

// VerificationEmail renders the one-time-code email for to.
func VerificationEmail(to, code string, ttl time.Duration) (Message, error) {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	var buf bytes.Buffer
	err := verificationTmpl.Execute(&buf, struct {
		Product string
		Code    string
		Minutes int
	}{
		Product: "Secure Auth",
		Code:    code,
		Minutes: minutes,
	})
	if err != nil {
		return Message{}, fmt.Errorf("mail: render verification: %w", err)
	}

	return Message{To: to, Subject: verificationSubject, HTML: buf.String()}, nil
}
