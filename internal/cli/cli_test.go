package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/docsite/internal/infra/storage/sqlstore"
	"github.com/vietddude/docsite/internal/repository"
)

func writeConfig(t *testing.T, dbURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "environment: test\n"
	if dbURL != "" {
		body += "database:\n  driver: sqlite3\n  url: " + dbURL + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	purgeOlderThan = 0
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestMigrateStatusAndPurge(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "docsite.db")
	cfg := writeConfig(t, "file:"+dbPath)

	out, err := run(t, "migrate", "up", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version: 2")

	ctx := context.Background()
	db, err := sqlstore.Open(ctx, sqlstore.Config{Driver: sqlstore.DriverSQLite3, URL: "file:" + dbPath})
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	users := repository.NewUsers(sqlstore.NewUserStore(db), repository.WithClock(func() time.Time { return past }))
	posts := repository.NewPosts(sqlstore.NewPostStore(db), repository.WithClock(func() time.Time { return past }))

	u, err := users.Create(ctx, repository.CreateUserInput{Email: "a@x.com", Name: "A"})
	require.NoError(t, err)
	p, err := posts.Create(ctx, repository.CreatePostInput{
		UserID: u.ID.String(), Title: "T", Content: "Long enough content", Slug: "t",
	})
	require.NoError(t, err)
	_, err = users.Create(ctx, repository.CreateUserInput{Email: "b@x.com", Name: "B"})
	require.NoError(t, err)
	_, err = posts.Delete(ctx, p.ID)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err = run(t, "status", "--config", cfg)
	require.NoError(t, err)
	assert.Regexp(t, `users\s*\|\s*2\s*\|\s*0`, out)
	assert.Regexp(t, `posts\s*\|\s*0\s*\|\s*1`, out)

	out, err = run(t, "purge", "--config", cfg, "--older-than", "24h")
	require.NoError(t, err)
	assert.Contains(t, out, "purged 1 posts and 0 users")

	out, err = run(t, "status", "--config", cfg)
	require.NoError(t, err)
	assert.Regexp(t, `posts\s*\|\s*0\s*\|\s*0`, out)

	out, err = run(t, "migrate", "down", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version: 1")
}

func TestPurgeRequiresRetention(t *testing.T) {
	cfg := writeConfig(t, "file:"+filepath.Join(t.TempDir(), "docsite.db"))
	_, err := run(t, "purge", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no retention period")
}

func TestMigrateRequiresDatabase(t *testing.T) {
	cfg := writeConfig(t, "")
	_, err := run(t, "migrate", "status", "--config", cfg)
	assert.ErrorIs(t, err, errNoDatabase)
}

func TestMissingExplicitConfigFails(t *testing.T) {
	_, err := run(t, "status", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
