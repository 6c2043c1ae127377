// Package diagnostics checks the database on startup and answers health
// checks for the API.
package diagnostics

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"

	"github.com/iairu/react-springboot-docker-boilerplate/internal/models"
	"github.com/iairu/react-springboot-docker-boilerplate/internal/store"
)

const (
	banner = "=========================================="

	// DefaultHealthTimeout bounds IsConnectionHealthy when no timeout is
	// configured.
	DefaultHealthTimeout = 5 * time.Second

	sampleUsername = "testuser"
	sampleEmail    = "test@example.com"
)

// Database validates connections and reads database metadata.
type Database interface {
	Ping(ctx context.Context) error
	Metadata(ctx context.Context) (*store.Metadata, error)
}

// UserStore is the part of the repository the persistence check exercises.
type UserStore interface {
	Count(ctx context.Context) (int64, error)
	Save(ctx context.Context, u *models.User) (*models.User, error)
	FindAll(ctx context.Context) ([]models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindUsersCreatedAfter(ctx context.Context, t time.Time) ([]models.User, error)
}

// Migrator creates the schema the store needs.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Service runs connection diagnostics against a store.
type Service struct {
	db            Database
	users         UserStore
	healthTimeout time.Duration
	out           *log.Logger
	errOut        *log.Logger
	now           func() time.Time

	mu      sync.Mutex
	pending Migrator
}

func NewService(db Database, users UserStore, healthTimeout time.Duration) *Service {
	if healthTimeout <= 0 {
		healthTimeout = DefaultHealthTimeout
	}
	return &Service{
		db:            db,
		users:         users,
		healthTimeout: healthTimeout,
		out:           log.New(os.Stdout, "", log.LstdFlags),
		errOut:        log.New(os.Stderr, "", log.LstdFlags),
		now:           time.Now,
	}
}

// SetOutput redirects reports to stdout and failures to stderr.
func (s *Service) SetOutput(stdout, stderr io.Writer) {
	s.out.SetOutput(stdout)
	s.errOut.SetOutput(stderr)
}

// Run performs the connection test followed by the persistence test.
func (s *Service) Run(ctx context.Context) {
	id := uuid.New().String()
	s.out.Printf("diagnostics run %s", id)
	s.TestDatabaseConnection(ctx)
	s.TestPersistence(ctx)
	s.out.Printf("diagnostics run %s finished", id)
}

// TestDatabaseConnection reports connection metadata. Failures are logged
// and never returned.
func (s *Service) TestDatabaseConnection(ctx context.Context) {
	md, err := s.db.Metadata(ctx)
	if err != nil {
		s.errOut.Println(banner)
		s.errOut.Println("DATABASE CONNECTION FAILED")
		s.errOut.Println(banner)
		s.reportError(err)
		s.errOut.Println(banner)
		return
	}

	s.out.Println(banner)
	s.out.Println("DATABASE CONNECTION TEST")
	s.out.Println(banner)
	s.out.Println("Database connection successful!")
	s.out.Printf("Database Product Name: %s", md.ProductName)
	s.out.Printf("Database Product Version: %s", md.ProductVersion)
	s.out.Printf("Connection URL: %s", md.URL)
	s.out.Printf("Username: %s", md.User)
	s.out.Printf("Database Schema: %s", md.Schema)
	s.out.Printf("Driver Name: %s", md.DriverName)
	s.out.Printf("Driver Version: %s", md.DriverVersion)
	s.out.Println(banner)
}

func (s *Service) reportError(err error) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		s.errOut.Printf("Severity: %s", pgErr.Severity)
		s.errOut.Printf("SQL State: %s", pgErr.Code)
		s.errOut.Printf("Message: %s", pgErr.Message)
		return
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		s.errOut.Printf("Error Code: %d", sqliteErr.Code())
		s.errOut.Printf("Message: %s", sqliteErr.Error())
		return
	}
	s.errOut.Printf("Message: %v", err)
}

// RetryMigration runs m after each successful health check until it
// succeeds once. It is used when the database was down at startup.
func (s *Service) RetryMigration(m Migrator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = m
}

// IsConnectionHealthy reports whether a connection can be validated within
// the health timeout. It never returns an error.
func (s *Service) IsConnectionHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.healthTimeout)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.errOut.Printf("database health check failed: %v", err)
		return false
	}
	s.migratePending(ctx)
	return true
}

func (s *Service) migratePending(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return
	}
	if err := s.pending.Migrate(ctx); err != nil {
		s.errOut.Printf("migrate retry failed: %v", err)
		return
	}
	s.pending = nil
	s.out.Println("schema migrated after database became reachable")
}

// TestPersistence round-trips a sample user through the store when it is
// empty, otherwise lists the existing users. Failures are logged and never
// returned.
func (s *Service) TestPersistence(ctx context.Context) {
	if err := s.testPersistence(ctx); err != nil {
		s.errOut.Println(banner)
		s.errOut.Println("PERSISTENCE TEST FAILED")
		s.errOut.Println(banner)
		s.errOut.Printf("Error: %v", err)
		s.errOut.Println(banner)
	}
}

func (s *Service) testPersistence(ctx context.Context) error {
	s.out.Println(banner)
	s.out.Println("PERSISTENCE TEST")
	s.out.Println(banner)

	n, err := s.users.Count(ctx)
	if err != nil {
		return err
	}
	s.out.Printf("Current user count: %d", n)

	if n == 0 {
		saved, err := s.users.Save(ctx, &models.User{Username: sampleUsername, Email: sampleEmail})
		if err != nil {
			return err
		}
		s.out.Printf("Created test user: %s", saved)

		found, err := s.users.FindByUsername(ctx, sampleUsername)
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.out.Println("Failed to retrieve saved user")
		case err != nil:
			return err
		default:
			s.out.Printf("User retrieval successful: %s", found.Username)
		}
	} else {
		all, err := s.users.FindAll(ctx)
		if err != nil {
			return err
		}
		s.out.Println("Existing users:")
		for _, u := range all {
			s.out.Printf("   - %s (%s)", u.Username, u.Email)
		}
	}

	recent, err := s.users.FindUsersCreatedAfter(ctx, s.now().Add(-24*time.Hour))
	if err != nil {
		return err
	}
	s.out.Printf("Users created in last 24 hours: %d", len(recent))

	s.out.Println("Persistence test completed successfully!")
	s.out.Println(banner)
	return nil
}
