package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/repository"
	"nimbusdrive/internal/session"
)

var testDB *sqlx.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("nimbusdrive_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		),
	)
	if err != nil {
		log.Fatalf("failed to start postgres container: %s", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("failed to get connection string: %s", err)
	}

	mig, err := migrate.New("file://../../migrations", connStr)
	if err != nil {
		log.Fatalf("failed to create migrate instance: %s", err)
	}
	if err := mig.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatalf("failed to run migrations: %s", err)
	}
	mig.Close()

	testDB, err = sqlx.Connect("postgres", connStr)
	if err != nil {
		log.Fatalf("failed to connect to test database: %s", err)
	}

	code := m.Run()

	testDB.Close()
	if err := pgContainer.Terminate(ctx); err != nil {
		log.Printf("failed to terminate postgres container: %s", err)
	}
	os.Exit(code)
}

// fakeStorage is an in-memory blob backend with injectable failures.
type fakeStorage struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failUpload bool
	failDelete map[string]bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		objects:    make(map[string][]byte),
		failDelete: make(map[string]bool),
	}
}

func (s *fakeStorage) UploadBytes(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpload {
		return errors.New("upload refused")
	}
	s.objects[key] = data
	return nil
}

func (s *fakeStorage) ObjectExists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *fakeStorage) DeleteObject(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete[key] {
		return errors.New("delete refused")
	}
	delete(s.objects, key)
	return nil
}

func (s *fakeStorage) PresignGet(_ context.Context, key string, _ time.Duration, _ string) (string, error) {
	return "https://blobs.example/" + key, nil
}

func (s *fakeStorage) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *fakeStorage) setDeleteFailure(key string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDelete[key] = fail
}

type testEnv struct {
	storage  *fakeStorage
	sessions *session.MemoryStore
	profiles *repository.ProfileRepository
	plans    *repository.PlanRepository
	quota    *QuotaService
	files    *FileService
	folders  *FolderService
	trash    *TrashService
	shares   *ShareService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fileRepo := repository.NewFileRepository(testDB)
	folderRepo := repository.NewFolderRepository(testDB)
	trashRepo := repository.NewTrashRepository(testDB)
	shareRepo := repository.NewShareRepository(testDB)
	planRepo := repository.NewPlanRepository(testDB)
	profileRepo := repository.NewProfileRepository(testDB)

	storage := newFakeStorage()
	sessions := session.NewMemoryStore()

	quota := NewQuotaService(profileRepo, planRepo)
	return &testEnv{
		storage:  storage,
		sessions: sessions,
		profiles: profileRepo,
		plans:    planRepo,
		quota:    quota,
		files:    NewFileService(fileRepo, folderRepo, profileRepo, quota, storage),
		folders:  NewFolderService(folderRepo, fileRepo),
		trash:    NewTrashService(trashRepo, fileRepo, folderRepo, profileRepo, storage),
		shares:   NewShareService(shareRepo, fileRepo, folderRepo, storage, sessions),
	}
}

// newOwner creates a fresh owner on a dedicated plan with the given
// limits.
func (e *testEnv) newOwner(t *testing.T, maxStorage, maxFile int64) string {
	t.Helper()
	ctx := context.Background()

	ownerID := "owner-" + uuid.NewString()[:8]
	plan := planFixture(maxStorage, maxFile)
	require.NoError(t, e.quota.CreatePlan(ctx, plan))
	require.NoError(t, e.quota.AssignPlan(ctx, ownerID, plan.ID))
	return ownerID
}

func planFixture(maxStorage, maxFile int64) *domain.StoragePlan {
	return &domain.StoragePlan{
		Name:           "plan-" + uuid.NewString()[:8],
		MaxStorageSize: maxStorage,
		MaxFileSize:    maxFile,
		IsActive:       true,
	}
}

func (e *testEnv) usedStorage(t *testing.T, ownerID string) int64 {
	t.Helper()
	info, err := e.quota.GetQuotaInfo(context.Background(), ownerID)
	require.NoError(t, err)
	return info.UsedSpace
}

func payload(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func fileName() string {
	return fmt.Sprintf("file-%s.txt", uuid.NewString()[:8])
}
