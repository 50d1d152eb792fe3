package mail

import (
	"context"
	"time"
)

// VerificationNotifier renders the verification email and queues it.
// It satisfies otp.Notifier.
type VerificationNotifier struct {
	dispatcher *Dispatcher
	now        func() time.Time
}

func NewVerificationNotifier(d *Dispatcher) *VerificationNotifier {
	return &VerificationNotifier{dispatcher: d, now: time.Now}
}

func (n *VerificationNotifier) NotifyCode(_ context.Context, email, code string, expiresAt time.Time) error {
	msg, err := VerificationEmail(email, code, expiresAt.Sub(n.now()))
	if err != nil {
		return err
	}
	return n.dispatcher.Enqueue(msg)
}
