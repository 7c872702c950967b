package services

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/passlink/internal/common"
	"github.com/dmitrijs2005/passlink/internal/dbx"
	"github.com/dmitrijs2005/passlink/internal/logging"
	"github.com/dmitrijs2005/passlink/internal/server/config"
	"github.com/dmitrijs2005/passlink/internal/server/models"
	authmethodsrepo "github.com/dmitrijs2005/passlink/internal/server/repositories/authmethods"
	peersrepo "github.com/dmitrijs2005/passlink/internal/server/repositories/peers"
	usersrepo "github.com/dmitrijs2005/passlink/internal/server/repositories/users"
)

// --- shared helpers ---

func newSQLMockDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:            "test-secret",
		TokenValidity:        time.Hour,
		OTPCodeAlphabet:      "0123456789",
		OTPCodeLength:        6,
		OTPExpiration:        2 * time.Minute,
		HashTimeCost:         1,
		RandomDelayMax:       0, // no artificial latency in tests
		HandshakeSecret:      "bootstrap-secret",
		HandshakeTokenLength: 16,
		HandshakeTimeout:     time.Second,
	}
}

// --- fake repositories ---

type fakeUsersRepo struct {
	byEmail map[string]*models.User

	beginCalls  int
	beginErr    error
	lastSecret  string
	lastToken   string
	lastBeginID string

	completeCalls int
	completeErr   error
	lastLoginAt   time.Time
	lastIP        *string
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) BeginLogin(ctx context.Context, userID string, expected usersrepo.LoginSnapshot, secretHash, tokenHash string) error {
	f.beginCalls++
	f.lastBeginID = userID
	f.lastSecret = secretHash
	f.lastToken = tokenHash
	return f.beginErr
}

func (f *fakeUsersRepo) CompleteLogin(ctx context.Context, userID string, expected usersrepo.LoginSnapshot, loginAt time.Time, ip *string) error {
	f.completeCalls++
	f.lastLoginAt = loginAt
	f.lastIP = ip
	return f.completeErr
}

type fakeAuthMethodsRepo struct {
	byID map[string]*models.AuthMethod
}

func (f *fakeAuthMethodsRepo) GetByID(ctx context.Context, id string) (*models.AuthMethod, error) {
	if m, ok := f.byID[id]; ok {
		return m, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAuthMethodsRepo) GetByName(ctx context.Context, name string) (*models.AuthMethod, error) {
	for _, m := range f.byID {
		if m.Name == name {
			return m, nil
		}
	}
	return nil, common.ErrorNotFound
}

type rotationCall struct {
	id         string
	token      string
	lastAccess int64
}

type fakePeersRepo struct {
	mu      sync.Mutex // rotations arrive from concurrent goroutines
	active  []models.AuthorizedAPI
	byName  map[string]*models.AuthorizedAPI
	listErr error

	rotations   []rotationCall
	rotationErr error

	validated   []string
	validateErr error
}

func (f *fakePeersRepo) rotationCalls() []rotationCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rotationCall(nil), f.rotations...)
}

func (f *fakePeersRepo) Create(ctx context.Context, peer *models.AuthorizedAPI) error { return nil }

func (f *fakePeersRepo) List(ctx context.Context) ([]models.AuthorizedAPI, error) {
	return f.active, f.listErr
}

func (f *fakePeersRepo) ListActive(ctx context.Context) ([]models.AuthorizedAPI, error) {
	return f.active, f.listErr
}

func (f *fakePeersRepo) GetByName(ctx context.Context, name string) (*models.AuthorizedAPI, error) {
	if p, ok := f.byName[name]; ok {
		return p, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakePeersRepo) CompleteRotation(ctx context.Context, id string, expected peersrepo.RotationSnapshot, token string, lastAccess int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rotations = append(f.rotations, rotationCall{id: id, token: token, lastAccess: lastAccess})
	return f.rotationErr
}

func (f *fakePeersRepo) MarkValidated(ctx context.Context, id string, expected peersrepo.RotationSnapshot) error {
	f.validated = append(f.validated, id)
	return f.validateErr
}

func (f *fakePeersRepo) SetStatus(ctx context.Context, name, status string) error { return nil }

type fakeRepoManager struct {
	u *fakeUsersRepo
	m *fakeAuthMethodsRepo
	p *fakePeersRepo
}

func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (f *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository      { return f.u }
func (f *fakeRepoManager) AuthMethods(db dbx.DBTX) authmethodsrepo.Repository {
	return f.m
}
func (f *fakeRepoManager) Peers(db dbx.DBTX) peersrepo.Repository { return f.p }

// --- fake mailer ---

type fakeMailer struct {
	sendErr  error
	lastTo   string
	lastBody string
	calls    int
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	f.calls++
	f.lastTo = to
	f.lastBody = htmlBody
	return f.sendErr
}
