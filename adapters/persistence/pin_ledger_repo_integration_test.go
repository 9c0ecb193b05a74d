package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/khoahotran/openforge/internal/domain/pin"
	"github.com/khoahotran/openforge/internal/domain/user"
	"github.com/khoahotran/openforge/pkg/apperror"
)

type RepoIntegrationTestSuite struct {
	suite.Suite
	dbPool      *pgxpool.Pool
	pgContainer *postgres.PostgresContainer
	ledger      pin.Repository
	userRepo    user.Repository
}

func (s *RepoIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(1*time.Minute),
		),
	)
	if err != nil {
		s.T().Fatalf("Failed to start postgres container: %s", err)
	}
	s.pgContainer = pgContainer

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		s.T().Fatalf("Failed to get connection string: %s", err)
	}

	m, err := migrate.New("file://../../migrations", dsn)
	if err != nil {
		s.T().Fatalf("Failed to create migrate instance: %s", err)
	}
	if err := m.Up(); err != nil {
		s.T().Fatalf("Failed to run migrations: %s", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		s.T().Fatalf("Failed to create pgxpool: %s", err)
	}
	s.dbPool = pool
	s.ledger = NewPostgresPinLedger(pool)
	s.userRepo = NewPostgresUserRepo(pool)
}

func (s *RepoIntegrationTestSuite) SetupTest() {
	_, err := s.dbPool.Exec(context.Background(), `TRUNCATE pin_ledger, users`)
	s.Require().NoError(err)
}

func (s *RepoIntegrationTestSuite) TearDownSuite() {
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(context.Background()); err != nil {
			s.T().Fatalf("Failed to terminate postgres container: %s", err)
		}
	}
}

func TestRepoIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode.")
	}
	suite.Run(t, new(RepoIntegrationTestSuite))
}

func (s *RepoIntegrationTestSuite) save(cid, digest string, status pin.Status, at time.Time) *pin.Entry {
	e := pin.NewEntry(cid, digest, pin.KindImage, "0xabc", at.UTC())
	e.Status = status
	s.Require().NoError(s.ledger.Save(context.Background(), e))
	return e
}

func (s *RepoIntegrationTestSuite) Test_Save_And_FindByDigest() {
	ctx := context.Background()
	saved := s.save("bafy-a", "d1", pin.StatusPinned, time.Now())

	found, err := s.ledger.FindLiveByDigest(ctx, "d1")
	s.Require().NoError(err)
	s.Equal(saved.ID, found.ID)
	s.Equal("bafy-a", found.CID)

	s.Require().NoError(s.ledger.MarkStatus(ctx, []string{"bafy-a"}, pin.StatusUnpinned))
	_, err = s.ledger.FindLiveByDigest(ctx, "d1")
	s.ErrorIs(err, apperror.ErrNotFound)

	_, err = s.ledger.FindByCID(ctx, "missing")
	s.ErrorIs(err, apperror.ErrNotFound)
}

func (s *RepoIntegrationTestSuite) Test_Save_Upsert() {
	ctx := context.Background()
	s.save("bafy-a", "d1", pin.StatusReferenced, time.Now())
	s.save("bafy-b", "d2", pin.StatusUnpinned, time.Now())

	// Re-pinning keeps referenced rows referenced and revives unpinned ones.
	s.save("bafy-a", "d1", pin.StatusPinned, time.Now())
	s.save("bafy-b", "d2", pin.StatusPinned, time.Now())

	a, err := s.ledger.FindByCID(ctx, "bafy-a")
	s.Require().NoError(err)
	s.Equal(pin.StatusReferenced, a.Status)

	b, err := s.ledger.FindByCID(ctx, "bafy-b")
	s.Require().NoError(err)
	s.Equal(pin.StatusPinned, b.Status)
}

func (s *RepoIntegrationTestSuite) Test_ListStale() {
	ctx := context.Background()
	now := time.Now()
	s.save("old-1", "d1", pin.StatusPinned, now.Add(-3*time.Hour))
	s.save("old-2", "d2", pin.StatusPinned, now.Add(-2*time.Hour))
	s.save("fresh", "d3", pin.StatusPinned, now)
	s.save("old-ref", "d4", pin.StatusReferenced, now.Add(-5*time.Hour))

	stale, err := s.ledger.ListStale(ctx, pin.StatusPinned, now.Add(-time.Hour), 10)
	s.Require().NoError(err)
	s.Require().Len(stale, 2)
	s.Equal("old-1", stale[0].CID)
	s.Equal("old-2", stale[1].CID)

	limited, err := s.ledger.ListStale(ctx, pin.StatusPinned, now.Add(-time.Hour), 1)
	s.Require().NoError(err)
	s.Len(limited, 1)
}

func (s *RepoIntegrationTestSuite) Test_List() {
	ctx := context.Background()
	s.save("a", "d1", pin.StatusPinned, time.Now().Add(-time.Minute))
	s.save("b", "d2", pin.StatusReferenced, time.Now())

	all, err := s.ledger.List(ctx, pin.Filter{Owner: "0xabc"})
	s.Require().NoError(err)
	s.Len(all, 2)
	s.Equal("b", all[0].CID)

	referenced, err := s.ledger.List(ctx, pin.Filter{Status: pin.StatusReferenced})
	s.Require().NoError(err)
	s.Require().Len(referenced, 1)
	s.Equal("b", referenced[0].CID)
}

func (s *RepoIntegrationTestSuite) Test_UserRepo() {
	ctx := context.Background()
	u := &user.User{ID: uuid.New(), Email: "operator@example.com", PasswordHash: "hash"}
	s.Require().NoError(s.userRepo.Save(ctx, u))

	found, err := s.userRepo.FindByEmail(ctx, u.Email)
	s.Require().NoError(err)
	s.Equal(u.ID, found.ID)

	byID, err := s.userRepo.FindByID(ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(u.Email, byID.Email)

	err = s.userRepo.Save(ctx, &user.User{ID: uuid.New(), Email: u.Email, PasswordHash: "x"})
	s.ErrorIs(err, apperror.ErrConflict)

	s.Require().NoError(s.userRepo.UpdatePasswordHash(ctx, u.ID, "rotated"))
	found, err = s.userRepo.FindByEmail(ctx, u.Email)
	s.Require().NoError(err)
	s.Equal("rotated", found.PasswordHash)
	s.ErrorIs(s.userRepo.UpdatePasswordHash(ctx, uuid.New(), "x"), apperror.ErrNotFound)

	_, err = s.userRepo.FindByEmail(ctx, "nobody@example.com")
	s.ErrorIs(err, apperror.ErrNotFound)
}
