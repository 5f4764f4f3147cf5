package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/rolemesh/rolemesh/core"
	"github.com/rolemesh/rolemesh/logging"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	role       TEXT NOT NULL,
	kind       TEXT NOT NULL,
	owner      TEXT NOT NULL,
	character  TEXT NOT NULL,
	text       TEXT NOT NULL DEFAULT '',
	payload    BLOB,
	uri        TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_owner ON messages(owner, created_at);

CREATE TABLE IF NOT EXISTS conversations (
	id        TEXT PRIMARY KEY,
	owner     TEXT NOT NULL,
	character TEXT NOT NULL,
	public    INTEGER NOT NULL DEFAULT 0,
	created   TIMESTAMP NOT NULL,
	updated   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS conversation_history (
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	seq             INTEGER NOT NULL,
	message_id      TEXT NOT NULL,
	PRIMARY KEY (conversation_id, seq)
);`

// SQLiteOptions configures a SQLiteStore.
type SQLiteOptions struct {
	// Config is reported alongside search results.
	Config core.GenerationConfig
	// Logger receives store diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// SQLiteStore is a durable MemoryStore and ConversationStore backed by a
// single SQLite database file. History appends run inside one transaction per
// batch, which linearizes concurrent appends to the same conversation.
type SQLiteStore struct {
	db   *sql.DB
	opts SQLiteOptions
}

var (
	_ core.MemoryStore       = (*SQLiteStore)(nil)
	_ core.ConversationStore = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens or creates the database at path. Use ":memory:" for an
// ephemeral store. Call Initialize before first use to apply the schema.
func NewSQLiteStore(path string, optFns ...func(o *SQLiteOptions)) (*SQLiteStore, error) {
	opts := SQLiteOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storeErr("open database", err)
	}
	// SQLite allows a single writer; funnel all statements through one
	// connection so the driver queues instead of returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db, opts: opts}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Initialize implements core.MemoryStore, creating tables and indexes.
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return storeErr("apply schema", err)
	}
	s.opts.Logger.Debug("sqlite store initialized")
	return nil
}

type messageRow struct {
	ID        string    `db:"id"`
	Role      string    `db:"role"`
	Kind      string    `db:"kind"`
	Owner     string    `db:"owner"`
	Character string    `db:"character"`
	Text      string    `db:"text"`
	Payload   []byte    `db:"payload"`
	URI       string    `db:"uri"`
	CreatedAt time.Time `db:"created_at"`
}

func (r messageRow) message() core.Message {
	return core.Message{
		ID:        r.ID,
		Role:      core.Role(r.Role),
		Kind:      core.ContentKind(r.Kind),
		Owner:     r.Owner,
		Character: r.Character,
		Text:      r.Text,
		Binary:    r.Payload,
		URI:       r.URI,
		CreatedAt: r.CreatedAt,
	}
}

const messageColumns = `id, role, kind, owner, character, text, payload, uri, created_at`

// AddMessages implements core.MemoryStore. The batch commits atomically.
func (s *SQLiteStore) AddMessages(ctx context.Context, messages []core.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin add messages", err)
	}
	defer tx.Rollback()

	for _, msg := range messages {
		if msg.ID == "" {
			return fmt.Errorf("add messages: message without ID: %w", core.ErrBadRequest)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, string(msg.Role), string(msg.Kind), msg.Owner, msg.Character,
			msg.Text, msg.Binary, msg.URI, msg.CreatedAt.UTC(),
		)
		if err != nil {
			return storeErr("insert message", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit add messages", err)
	}
	return nil
}

// GetOne implements core.MemoryStore.
func (s *SQLiteStore) GetOne(ctx context.Context, id string) (core.Message, error) {
	var row messageRow
	err := sqlscan.Get(ctx, s.db, &row,
		`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Message{}, fmt.Errorf("message %q: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Message{}, storeErr("get message", err)
	}
	return row.message(), nil
}

// GetAll implements core.MemoryStore, newest first. A non-positive limit
// returns everything after the offset.
func (s *SQLiteStore) GetAll(ctx context.Context, ownerID string, limit, offset int) ([]core.Message, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}
	var rows []messageRow
	err := sqlscan.Select(ctx, s.db, &rows,
		`SELECT `+messageColumns+` FROM messages
		 WHERE owner = ? ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		ownerID, limit, offset)
	if err != nil {
		return nil, storeErr("list messages", err)
	}
	return rowsToMessages(rows), nil
}

// Search implements core.MemoryStore with a case-insensitive LIKE scan over
// message text, newest first. Owner on the query message narrows the scan.
func (s *SQLiteStore) Search(ctx context.Context, query core.Message, limit, offset int) ([]core.Message, core.GenerationConfig, error) {
	if limit <= 0 {
		limit = -1
	}
	q := `SELECT ` + messageColumns + ` FROM messages WHERE text LIKE ? ESCAPE '\'`
	args := []any{"%" + escapeLike(query.Text) + "%"}
	if query.Owner != "" {
		q += ` AND owner = ?`
		args = append(args, query.Owner)
	}
	q += ` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var rows []messageRow
	if err := sqlscan.Select(ctx, s.db, &rows, q, args...); err != nil {
		return nil, core.GenerationConfig{}, storeErr("search messages", err)
	}
	return rowsToMessages(rows), s.opts.Config, nil
}

// Update implements core.MemoryStore. The batch is rejected whole if any ID
// is missing.
func (s *SQLiteStore) Update(ctx context.Context, messages []core.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin update", err)
	}
	defer tx.Rollback()

	for _, msg := range messages {
		res, err := tx.ExecContext(ctx,
			`UPDATE messages SET role = ?, kind = ?, owner = ?, character = ?,
			 text = ?, payload = ?, uri = ?, created_at = ? WHERE id = ?`,
			string(msg.Role), string(msg.Kind), msg.Owner, msg.Character,
			msg.Text, msg.Binary, msg.URI, msg.CreatedAt.UTC(), msg.ID,
		)
		if err != nil {
			return storeErr("update message", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storeErr("update message", err)
		}
		if n == 0 {
			return fmt.Errorf("update message %q: %w", msg.ID, core.ErrNotFound)
		}
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit update", err)
	}
	return nil
}

// Delete implements core.MemoryStore. Missing IDs are ignored.
func (s *SQLiteStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return storeErr("delete messages", err)
	}
	return nil
}

// Reset implements core.MemoryStore.
func (s *SQLiteStore) Reset(ctx context.Context, ownerID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE owner = ?`, ownerID); err != nil {
		return storeErr("reset messages", err)
	}
	return nil
}

type conversationRow struct {
	ID        string    `db:"id"`
	Owner     string    `db:"owner"`
	Character string    `db:"character"`
	Public    bool      `db:"public"`
	Created   time.Time `db:"created"`
	Updated   time.Time `db:"updated"`
}

// Create implements core.ConversationStore.
func (s *SQLiteStore) Create(ctx context.Context, owner, character string, public bool) (*core.Conversation, error) {
	conv := core.NewConversation(owner, character)
	conv.Public = public

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, owner, character, public, created, updated) VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.Owner, conv.Character, conv.Public, conv.Created, conv.Updated)
	if err != nil {
		return nil, storeErr("create conversation", err)
	}
	return conv, nil
}

// Get implements core.ConversationStore, loading the conversation document
// and its ordered history references.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*core.Conversation, error) {
	var row conversationRow
	err := sqlscan.Get(ctx, s.db, &row,
		`SELECT id, owner, character, public, created, updated FROM conversations WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %q: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("get conversation", err)
	}

	var history []string
	err = sqlscan.Select(ctx, s.db, &history,
		`SELECT message_id FROM conversation_history WHERE conversation_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, storeErr("get conversation history", err)
	}
	if history == nil {
		history = []string{}
	}

	return &core.Conversation{
		ID:        row.ID,
		Owner:     row.Owner,
		Character: row.Character,
		Public:    row.Public,
		History:   history,
		Created:   row.Created,
		Updated:   row.Updated,
	}, nil
}

// AppendHistory implements core.ConversationStore. The sequence read and the
// inserts share one transaction, so concurrent appends to the same
// conversation serialize instead of interleaving.
func (s *SQLiteStore) AppendHistory(ctx context.Context, conversationID string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return s.Touch(ctx, conversationID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin append", err)
	}
	defer tx.Rollback()

	var next int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), -1) + 1 FROM conversation_history WHERE conversation_id = ?`,
		conversationID).Scan(&next)
	if err != nil {
		return storeErr("read history sequence", err)
	}

	for i, msgID := range messageIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_history (conversation_id, seq, message_id) VALUES (?, ?, ?)`,
			conversationID, next+int64(i), msgID)
		if err != nil {
			return storeErr("append history", err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated = ? WHERE id = ?`, time.Now().UTC(), conversationID)
	if err != nil {
		return storeErr("touch conversation", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation %q: %w", conversationID, core.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit append", err)
	}
	return nil
}

// Touch implements core.ConversationStore.
func (s *SQLiteStore) Touch(ctx context.Context, conversationID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated = ? WHERE id = ?`, time.Now().UTC(), conversationID)
	if err != nil {
		return storeErr("touch conversation", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation %q: %w", conversationID, core.ErrNotFound)
	}
	return nil
}

func rowsToMessages(rows []messageRow) []core.Message {
	messages := make([]core.Message, len(rows))
	for i, row := range rows {
		messages[i] = row.message()
	}
	return messages
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(core.ErrStorageUnavailable, err))
}
