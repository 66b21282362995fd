package auth

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// recordingMailer captures outbound messages for assertions. Setting fail
// makes every Send report a delivery failure.
type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	fail error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return m.fail
	}

	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *recordingMailer) last(t *testing.T) Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "expected at least one delivered message")
	return m.sent[len(m.sent)-1]
}

// bodyBetween extracts the text between two markers in the last message
// body. Used to pull tokens and generated passwords out of rendered email
// HTML.
func bodyBetween(t *testing.T, html, start, end string) string {
	t.Helper()
	i := strings.Index(html, start)
	require.GreaterOrEqual(t, i, 0, "marker %q not found", start)
	rest := html[i+len(start):]
	j := strings.Index(rest, end)
	require.GreaterOrEqual(t, j, 0, "marker %q not found", end)
	return rest[:j]
}

func testConfig(opts ...ConfigOption) Config {
	base := []ConfigOption{
		// keep hashing cheap in tests
		WithBcryptCost(4),
		WithSite("Testville", "http://testville.local"),
	}
	return NewConfig("test-signing-secret", append(base, opts...)...)
}

func setupTestDB(t *testing.T, cfg Config) RepositoryManager {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, Migrate(context.Background(), db, cfg))

	t.Cleanup(func() {
		_ = db.Close()
		_ = sqldb.Close()
	})

	return NewRepositoryManager(db)
}

func setupNotifier(t *testing.T, cfg Config) (*Notifier, *recordingMailer) {
	t.Helper()

	mailer := &recordingMailer{}
	notifier, err := NewNotifier(mailer, cfg, "/auth")
	require.NoError(t, err)

	return notifier, mailer
}

// seedUser inserts a user with a hashed password straight through the
// store layer.
func seedUser(t *testing.T, repo RepositoryManager, cfg Config, user *User, password string) *User {
	t.Helper()

	hash, err := NewBcryptHasher(cfg.BcryptCost).HashPassword(password)
	require.NoError(t, err)
	user.PasswordHash = hash

	created, err := repo.Users().Create(context.Background(), user)
	require.NoError(t, err)
	return created
}
