package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iairu/react-springboot-docker-boilerplate/internal/models"
)

// pgxDB is the subset of *pgxpool.Pool the store uses. Every call checks a
// connection out of the pool and returns it when the call completes.
type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore handles user CRUD against PostgreSQL.
type PostgresStore struct {
	pool pgxDB
	url  string
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, url: connURL(pool.Config().ConnConfig)}
}

// connURL renders the connection target without the password.
func connURL(cfg *pgx.ConnConfig) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(int(cfg.Port))),
		Path:   "/" + cfg.Database,
	}
	if cfg.User != "" {
		u.User = url.User(cfg.User)
	}
	return u.String()
}

// Migrate creates the users table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id         BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			username   VARCHAR(50)  UNIQUE NOT NULL,
			email      VARCHAR(255) UNIQUE NOT NULL,
			created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate users: %w", err)
	}
	return nil
}

const pgUserCols = `id, username, email, created_at`

func (s *PostgresStore) FindAll(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgUserCols+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("find all users: %w", err)
	}
	return collectPgUsers(rows)
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return s.findOne(ctx, `SELECT `+pgUserCols+` FROM users WHERE id = $1`, id)
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, `SELECT `+pgUserCols+` FROM users WHERE username = $1`, username)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, `SELECT `+pgUserCols+` FROM users WHERE email = $1`, email)
}

// Save inserts u when it has no ID, otherwise updates username and email of
// the existing row. The persisted row is returned.
func (s *PostgresStore) Save(ctx context.Context, u *models.User) (*models.User, error) {
	if u.ID == 0 {
		saved, err := s.findOne(ctx,
			`INSERT INTO users (username, email)
			 VALUES ($1, $2)
			 RETURNING `+pgUserCols,
			u.Username, u.Email,
		)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return saved, nil
	}

	saved, err := s.findOne(ctx,
		`UPDATE users SET username = $1, email = $2
		 WHERE id = $3
		 RETURNING `+pgUserCols,
		u.Username, u.Email, u.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update user %d: %w", u.ID, err)
	}
	return saved, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username)
}

func (s *PostgresStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email)
}

func (s *PostgresStore) FindByUsernameContainingIgnoreCase(ctx context.Context, fragment string) ([]models.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgUserCols+` FROM users
		 WHERE LOWER(username) LIKE $1 ESCAPE '\'
		 ORDER BY id`,
		containsPattern(fragment),
	)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return collectPgUsers(rows)
}

// FindUsersCreatedAfter returns users created strictly after t, newest first.
func (s *PostgresStore) FindUsersCreatedAfter(ctx context.Context, t time.Time) ([]models.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgUserCols+` FROM users
		 WHERE created_at > $1
		 ORDER BY created_at DESC, id DESC`,
		t,
	)
	if err != nil {
		return nil, fmt.Errorf("find users created after: %w", err)
	}
	return collectPgUsers(rows)
}

// Ping validates a pooled connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Metadata(ctx context.Context) (*Metadata, error) {
	md := Metadata{
		ProductName:   "PostgreSQL",
		URL:           s.url,
		DriverName:    "pgx",
		DriverVersion: moduleVersion("github.com/jackc/pgx/v5"),
	}
	err := s.pool.QueryRow(ctx,
		`SELECT current_setting('server_version'), current_user, COALESCE(current_schema(), '')`,
	).Scan(&md.ProductVersion, &md.User, &md.Schema)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return &md, nil
}

func (s *PostgresStore) findOne(ctx context.Context, sql string, args ...any) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx, sql, args...).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) exists(ctx context.Context, sql string, arg string) (bool, error) {
	var ok bool
	if err := s.pool.QueryRow(ctx, sql, arg).Scan(&ok); err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return ok, nil
}

func collectPgUsers(rows pgx.Rows) ([]models.User, error) {
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
