package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"hit/internal/model"
)

type dialect struct {
	driver       string
	numbered     bool
	schemaPrefix string
}

var (
	dialectSQLite = dialect{
		driver:       "sqlite",
		schemaPrefix: "PRAGMA journal_mode=WAL;",
	}
	dialectPostgres = dialect{
		driver:   "postgres",
		numbered: true,
	}
)

// bind rewrites ? placeholders to $n for drivers that need numbered ones.
func (d dialect) bind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore persists snapshots as JSON payload rows. The same statements
// serve SQLite and PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

func NewSQLiteStore(filePath string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}
	return openSQLStore(dialectSQLite, filePath)
}

func NewPostgresStore(dsn string) (*SQLStore, error) {
	return openSQLStore(dialectPostgres, dsn)
}

func openSQLStore(d dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", d.driver)
	}
	if d.driver == dialectSQLite.driver {
		db.SetMaxOpenConns(1)
	}
	st := &SQLStore{db: db, dialect: d}
	if err := st.initSchema(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "init schema")
	}
	return st, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Load(userKey string) (model.UserStats, bool, error) {
	row := s.db.QueryRow(s.dialect.bind(`
		SELECT payload
		FROM user_stats
		WHERE user_key = ?`),
		userKey,
	)
	var payload string
	err := row.Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserStats{}, false, nil
	}
	if err != nil {
		return model.UserStats{}, false, errors.Wrap(err, "query user stats")
	}
	var stats model.UserStats
	if err := json.Unmarshal([]byte(payload), &stats); err != nil {
		return model.UserStats{}, false, errors.Wrapf(err, "decode stats of %s", userKey)
	}
	return normalizeStats(stats), true, nil
}

func (s *SQLStore) Save(userKey string, stats model.UserStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return errors.Wrap(err, "encode stats")
	}
	_, err = s.db.Exec(s.dialect.bind(`
		INSERT INTO user_stats (user_key, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_key) DO UPDATE
		SET payload = excluded.payload, updated_at = excluded.updated_at`),
		userKey,
		string(payload),
		toTS(time.Now()),
	)
	return errors.Wrap(err, "upsert user stats")
}

func (s *SQLStore) Delete(userKey string) error {
	_, err := s.db.Exec(s.dialect.bind(`DELETE FROM user_stats WHERE user_key = ?`), userKey)
	return errors.Wrap(err, "delete user stats")
}

func (s *SQLStore) CreateAccount(account model.Account) error {
	account.Email = NormalizeEmail(account.Email)
	return withTx(context.Background(), s.db, func(tx *sql.Tx) error {
		var n int
		err := tx.QueryRow(s.dialect.bind(`
			SELECT COUNT(*) FROM accounts WHERE uid = ? OR email = ?`),
			account.UID,
			account.Email,
		).Scan(&n)
		if err != nil {
			return errors.Wrap(err, "check account")
		}
		if n > 0 {
			return ErrAlreadyExists
		}
		_, err = tx.Exec(s.dialect.bind(`
			INSERT INTO accounts (uid, email, display_name, password_hash, created_at)
			VALUES (?, ?, ?, ?, ?)`),
			account.UID,
			account.Email,
			account.DisplayName,
			account.PasswordHash,
			toTS(account.CreatedAt),
		)
		return errors.Wrap(err, "insert account")
	})
}

func (s *SQLStore) GetAccount(uid string) (model.Account, bool, error) {
	return s.getAccount(`WHERE uid = ?`, uid)
}

func (s *SQLStore) GetAccountByEmail(email string) (model.Account, bool, error) {
	return s.getAccount(`WHERE email = ?`, NormalizeEmail(email))
}

func (s *SQLStore) getAccount(where string, arg string) (model.Account, bool, error) {
	row := s.db.QueryRow(s.dialect.bind(`
		SELECT uid, email, display_name, password_hash, created_at
		FROM accounts
		`+where),
		arg,
	)
	var account model.Account
	var createdAt string
	err := row.Scan(
		&account.UID,
		&account.Email,
		&account.DisplayName,
		&account.PasswordHash,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, false, nil
	}
	if err != nil {
		return model.Account{}, false, errors.Wrap(err, "query account")
	}
	account.CreatedAt = fromTS(createdAt)
	return account, true, nil
}

func (s *SQLStore) initSchema() error {
	_, err := s.db.Exec(s.dialect.schemaPrefix + `
		CREATE TABLE IF NOT EXISTS user_stats (
			user_key TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS accounts (
			uid TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
	`)
	return err
}

// withTx runs fn inside a transaction, rolling back unless fn and the commit
// both succeed.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}

func toTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func fromTS(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
