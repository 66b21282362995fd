package auth

import (
	"context"
	"fmt"
	"strings"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Message is the outbound email unit handed to the Mailer collaborator.
type Message struct {
	To      string
	From    string
	Subject string
	HTML    string
}

// Mailer delivers notification emails. Implementations own their timeout
// and cancellation behavior; flows treat Send as a single blocking call.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// PasswordAuthenticator hashes and verifies credentials
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println(formatLogLine("ERR", msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println(formatLogLine("WRN", msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println(formatLogLine("INF", msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println(formatLogLine("DBG", msg, args...))
}

// formatLogLine renders the message followed by key=value pairs. A
// trailing unpaired argument is appended as-is.
func formatLogLine(level, msg string, args ...any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] AUTH %s", level, msg)

	i := 0
	for ; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	if i < len(args) {
		fmt.Fprintf(&b, " %v", args[i])
	}

	return b.String()
}
