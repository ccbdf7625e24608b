package reauth

import (
	"context"
	"log/slog"
)

// CodeSender delivers a one-time code out-of-band (email or SMS in
// production). Delivery is attempted once and failures never abort the
// reauth request; the manager logs and audits them instead.
type CodeSender interface {
	Deliver(ctx context.Context, email, code string) error
}

// LogSender writes codes to the process log. Development stand-in for a
// real mail/SMS gateway.
type LogSender struct {
	Log *slog.Logger
}

func (s *LogSender) Deliver(_ context.Context, email, code string) error {
	l := s.Log
	if l == nil {
		l = slog.Default()
	}
	l.Info("reauth code issued", "email", email, "code", code)
	return nil
}
