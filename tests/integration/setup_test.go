package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/davidps79/backend-grupo-13/internal/cart"
	"github.com/davidps79/backend-grupo-13/internal/catalog"
	"github.com/davidps79/backend-grupo-13/internal/database"
	"github.com/davidps79/backend-grupo-13/internal/identity"
	"github.com/davidps79/backend-grupo-13/internal/order"
	"github.com/davidps79/backend-grupo-13/internal/ownership"
	"github.com/davidps79/backend-grupo-13/internal/payment"
	"github.com/davidps79/backend-grupo-13/internal/wishlist"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := runMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func runMigrations(db *sql.DB) error {
	migrationDir := "../../migrations"
	files, err := os.ReadDir(migrationDir)
	if err != nil {
		return fmt.Errorf("read migration directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".up.sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		content, err := os.ReadFile(filepath.Join(migrationDir, filename))
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", filename, err)
		}
	}

	return nil
}

// fakeLookup stands in for the external identity service.
type fakeLookup struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*identity.User
	readers map[uuid.UUID]*identity.Reader
	authors map[uuid.UUID]*identity.Author
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		users:   make(map[uuid.UUID]*identity.User),
		readers: make(map[uuid.UUID]*identity.Reader),
		authors: make(map[uuid.UUID]*identity.Author),
	}
}

func (f *fakeLookup) addReader(userID uuid.UUID) *identity.Reader {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID] = &identity.User{ID: userID, Role: "User"}
	reader := &identity.Reader{ID: uuid.New(), UserID: userID}
	f.readers[userID] = reader
	return reader
}

func (f *fakeLookup) addAuthor(userID uuid.UUID) *identity.Author {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID] = &identity.User{ID: userID, Role: "Author"}
	author := &identity.Author{ID: uuid.New(), UserID: userID}
	f.authors[userID] = author
	return author
}

func (f *fakeLookup) GetUserByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.users[id]; ok {
		return user, nil
	}
	return nil, database.ErrUserNotFound
}

func (f *fakeLookup) GetReaderByUser(_ context.Context, userID uuid.UUID) (*identity.Reader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if reader, ok := f.readers[userID]; ok {
		return reader, nil
	}
	return nil, database.ErrReaderNotFound
}

func (f *fakeLookup) GetAuthorByUser(_ context.Context, userID uuid.UUID) (*identity.Author, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if author, ok := f.authors[userID]; ok {
		return author, nil
	}
	return nil, database.ErrAuthorNotFound
}

// fakeGateway issues deterministic links without leaving the process.
type fakeGateway struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (g *fakeGateway) IssuePaymentLink(_ context.Context, req payment.LinkRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.fail {
		return "", fmt.Errorf("%w: provider unavailable", database.ErrGateway)
	}
	return fmt.Sprintf("https://pay.test/%s", req.TransactionID), nil
}

type services struct {
	catalog   catalog.Service
	ownership ownership.Registry
	wishlist  wishlist.Service
	cart      cart.Service
	orders    order.Engine
	lookup    *fakeLookup
	gateway   *fakeGateway
}

func newServices(db *sql.DB) *services {
	lookup := newFakeLookup()
	gateway := &fakeGateway{}
	cartSvc := cart.NewService(db, lookup)

	return &services{
		catalog:   catalog.NewService(db, lookup),
		ownership: ownership.NewRegistry(db, lookup),
		wishlist:  wishlist.NewService(db, lookup),
		cart:      cartSvc,
		orders:    order.NewEngine(db, lookup, gateway, cartSvc, zerolog.Nop()),
		lookup:    lookup,
		gateway:   gateway,
	}
}

func mustCreateEbook(t *testing.T, svc *services, price string, stock int) *catalogEbook {
	t.Helper()

	authorUser := uuid.New()
	svc.lookup.addAuthor(authorUser)

	ebook, err := svc.catalog.Create(context.Background(), catalog.CreateEbook{
		Title:     fmt.Sprintf("Test Ebook %s", uuid.NewString()[:8]),
		Publisher: "Test Press",
		AuthorID:  authorUser.String(),
		Overview:  "test",
		Price:     mustDecimal(t, price),
		Stock:     stock,
		Category:  "Testing",
	})
	if err != nil {
		t.Fatalf("Create ebook: %v", err)
	}

	return &catalogEbook{ebook.ID, authorUser}
}

type catalogEbook struct {
	ID         uuid.UUID
	AuthorUser uuid.UUID
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("Parse decimal %q: %v", s, err)
	}
	return d
}
