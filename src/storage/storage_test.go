package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "skald.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAppliesMigrations(t *testing.T) {
	db := openTestDB(t)

	records, err := db.MigrationStatus()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, 1, records[0].Version)
	assert.Equal(t, "initial_schema", records[0].Name)
	for _, rec := range records {
		assert.True(t, rec.Applied, "migration %d (%s) should be applied", rec.Version, rec.Name)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skald.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening must not re-run applied migrations.
	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	records, err := db.MigrationStatus()
	require.NoError(t, err)
	for _, rec := range records {
		assert.True(t, rec.Applied)
	}
}

func TestOpenRawReportsPendingMigrations(t *testing.T) {
	db, err := OpenRaw(filepath.Join(t.TempDir(), "skald.db"))
	require.NoError(t, err)
	defer db.Close()

	records, err := db.MigrationStatus()
	require.NoError(t, err)
	require.NotEmpty(t, records)
	for _, rec := range records {
		assert.False(t, rec.Applied, "raw open must not apply migration %d", rec.Version)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	session := &Session{}
	require.NoError(t, CreateSession(ctx, db.DB(), session))
	require.NotEmpty(t, session.ID)

	got, err := GetSessionByID(ctx, db.DB(), session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, session.ID, got.ID)
	assert.Nil(t, got.CurrentConversationID)
	assert.Empty(t, got.ConversationIDs)

	missing, err := GetSessionByID(ctx, db.DB(), "no-such-session")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateSessionTracksConversations(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	session := &Session{}
	require.NoError(t, CreateSession(ctx, db.DB(), session))

	convID := "conv-1"
	session.CurrentConversationID = &convID
	session.ConversationIDs = append(session.ConversationIDs, convID)
	require.NoError(t, UpdateSession(ctx, db.DB(), session))

	got, err := GetSessionByID(ctx, db.DB(), session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.CurrentConversationID)
	assert.Equal(t, convID, *got.CurrentConversationID)
	assert.Equal(t, JSONStringArray{convID}, got.ConversationIDs)
}

func TestGetLatestSessionPrefersNewest(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	older := &Session{CreatedAt: time.Now().Add(-time.Hour), UpdatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, CreateSession(ctx, db.DB(), older))
	newer := &Session{}
	require.NoError(t, CreateSession(ctx, db.DB(), newer))

	got, err := GetLatestSession(ctx, db.DB())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newer.ID, got.ID)
}

func TestConversationMessagesOrdered(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	conv := &Conversation{Title: "first chat", ProjectDirectory: "/tmp/project"}
	require.NoError(t, CreateConversation(ctx, db.DB(), conv))
	require.NotEmpty(t, conv.ID)

	base := time.Now().Add(-time.Minute)
	require.NoError(t, CreateMessage(ctx, db.DB(), &Message{
		ConversationID: conv.ID,
		Role:           "user",
		Content:        "hello",
		CreatedAt:      base,
	}))
	require.NoError(t, CreateMessage(ctx, db.DB(), &Message{
		ConversationID: conv.ID,
		Role:           "assistant",
		Provider:       "openrouter",
		Model:          "anthropic/claude-sonnet-4",
		Content:        "hi there",
		CreatedAt:      base.Add(time.Second),
	}))

	messages, err := GetMessagesByConversationID(ctx, db.DB(), conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.Equal(t, "anthropic/claude-sonnet-4", messages[1].Model)
}

func TestCreateToolExecution(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	conv := &Conversation{ProjectDirectory: "/tmp/project"}
	require.NoError(t, CreateConversation(ctx, db.DB(), conv))

	exec := &ToolExecution{
		ConversationID: conv.ID,
		ToolName:       "read_file",
		Input:          `{"path":"go.mod"}`,
		Output:         "module example",
		DurationMs:     12,
	}
	require.NoError(t, CreateToolExecution(ctx, db.DB(), exec))
	require.NotEmpty(t, exec.ID)
}

func TestForeignKeysEnforced(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := CreateMessage(ctx, db.DB(), &Message{
		ConversationID: "missing-conversation",
		Role:           "user",
		Content:        "orphan",
	})
	assert.Error(t, err)
}

func TestParseMigrationName(t *testing.T) {
	version, name, ok := parseMigrationName("012_add_thing.sql")
	require.True(t, ok)
	assert.Equal(t, 12, version)
	assert.Equal(t, "add_thing", name)

	for _, bad := range []string{"readme.md", "nodigits.sql", "0_zero.sql", "5.sql"} {
		_, _, ok := parseMigrationName(bad)
		assert.False(t, ok, "expected %q to be rejected", bad)
	}
}

func TestUpStatementsStopsAtDown(t *testing.T) {
	content := `-- +goose Up
-- +goose StatementBegin
CREATE TABLE a (id TEXT);
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
DROP TABLE a;
-- +goose StatementEnd
`
	up := upStatements(content)
	assert.Contains(t, up, "CREATE TABLE a")
	assert.NotContains(t, up, "DROP TABLE")
}

func TestJSONStringArrayScan(t *testing.T) {
	var arr JSONStringArray
	require.NoError(t, arr.Scan(`["a","b"]`))
	assert.Equal(t, JSONStringArray{"a", "b"}, arr)

	require.NoError(t, arr.Scan(nil))
	assert.Empty(t, arr)

	require.NoError(t, arr.Scan([]byte("[]")))
	assert.Empty(t, arr)

	assert.Error(t, arr.Scan(42))
}

func TestJSONStringArrayValue(t *testing.T) {
	val, err := JSONStringArray(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", val)

	val, err = JSONStringArray{"x"}.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte(`["x"]`), val)
}
