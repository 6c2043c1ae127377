package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"

	"github.com/iairu/react-springboot-docker-boilerplate/internal/models"
)

// sqliteTime is fixed width so that text comparison orders like time.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// SQLite's LOWER only folds ASCII; unicode_lower folds the same way
// strings.ToLower does, so it agrees with containsPattern.
func init() {
	sqlite.MustRegisterDeterministicScalarFunction("unicode_lower", 1,
		func(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			switch v := args[0].(type) {
			case nil:
				return nil, nil
			case string:
				return strings.ToLower(v), nil
			case []byte:
				return strings.ToLower(string(v)), nil
			default:
				return v, nil
			}
		})
}

// SQLiteStore handles user CRUD against a SQLite database file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens the database at path using the modernc driver. An
// in-memory database lives only as long as its connection, so the pool is
// pinned to a single connection that is never recycled.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}
	return db, nil
}

func NewSQLiteStore(db *sql.DB, path string) *SQLiteStore {
	return &SQLiteStore{db: db, path: path}
}

// Migrate creates the users table if it doesn't exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL UNIQUE,
  created_at TEXT NOT NULL
);
`)
	if err != nil {
		return fmt.Errorf("migrate users: %w", err)
	}
	return nil
}

const sqliteUserCols = `id, username, email, created_at`

func (s *SQLiteStore) FindAll(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteUserCols+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("find all users: %w", err)
	}
	return collectSQLiteUsers(rows)
}

func (s *SQLiteStore) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return s.findOne(ctx, `SELECT `+sqliteUserCols+` FROM users WHERE id = ?`, id)
}

func (s *SQLiteStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, `SELECT `+sqliteUserCols+` FROM users WHERE username = ?`, username)
}

func (s *SQLiteStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, `SELECT `+sqliteUserCols+` FROM users WHERE email = ?`, email)
}

// Save inserts u when it has no ID, otherwise updates username and email of
// the existing row. The persisted row is returned.
func (s *SQLiteStore) Save(ctx context.Context, u *models.User) (*models.User, error) {
	if u.ID == 0 {
		createdAt := time.Now().UTC()
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO users (username, email, created_at) VALUES (?, ?, ?)`,
			u.Username, u.Email, createdAt.Format(sqliteTime))
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return &models.User{ID: id, Username: u.Username, Email: u.Email, CreatedAt: createdAt}, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET username = ?, email = ? WHERE id = ?`,
		u.Username, u.Email, u.ID)
	if err != nil {
		return nil, fmt.Errorf("update user %d: %w", u.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("update user %d: %w", u.ID, ErrNotFound)
	}
	return s.FindByID(ctx, u.ID)
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = ?)`, username)
}

func (s *SQLiteStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = ?)`, email)
}

func (s *SQLiteStore) FindByUsernameContainingIgnoreCase(ctx context.Context, fragment string) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteUserCols+` FROM users
		 WHERE unicode_lower(username) LIKE ? ESCAPE '\'
		 ORDER BY id`,
		containsPattern(fragment))
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return collectSQLiteUsers(rows)
}

// FindUsersCreatedAfter returns users created strictly after t, newest first.
func (s *SQLiteStore) FindUsersCreatedAfter(ctx context.Context, t time.Time) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteUserCols+` FROM users
		 WHERE created_at > ?
		 ORDER BY created_at DESC, id DESC`,
		t.UTC().Format(sqliteTime))
	if err != nil {
		return nil, fmt.Errorf("find users created after: %w", err)
	}
	return collectSQLiteUsers(rows)
}

// Ping checks out a dedicated connection, validates it and returns it to
// the pool.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.PingContext(ctx)
}

func (s *SQLiteStore) Metadata(ctx context.Context) (*Metadata, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	defer conn.Close()

	md := Metadata{
		ProductName:   "SQLite",
		URL:           "sqlite:" + s.path,
		Schema:        "main",
		DriverName:    "modernc.org/sqlite",
		DriverVersion: moduleVersion("modernc.org/sqlite"),
	}
	if err := conn.QueryRowContext(ctx, `SELECT sqlite_version()`).Scan(&md.ProductVersion); err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return &md, nil
}

func (s *SQLiteStore) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	u, err := scanSQLiteUser(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *SQLiteStore) exists(ctx context.Context, query string, arg string) (bool, error) {
	var ok bool
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(&ok); err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return ok, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteUser(row rowScanner) (*models.User, error) {
	var u models.User
	var createdAt string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &createdAt); err != nil {
		return nil, err
	}
	t, err := time.Parse(sqliteTime, createdAt)
	if err != nil {
		return nil, fmt.Errorf("user %d created_at: %w", u.ID, err)
	}
	u.CreatedAt = t
	return &u, nil
}

func collectSQLiteUsers(rows *sql.Rows) ([]models.User, error) {
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
