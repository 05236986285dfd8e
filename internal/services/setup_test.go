package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"affiliate-platform/internal/models"
	"affiliate-platform/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(tb testing.TB) *gorm.DB {
	tb.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	if err != nil {
		tb.Fatalf("failed to connect database: %v", err)
	}

	// Every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("failed to get sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { sqlDB.Close() })

	err = db.AutoMigrate(
		&models.UserReferral{},
		&models.ReferralTracking{},
		&models.PendingUser{},
		&models.Notification{},
		&models.UserNotification{},
	)
	if err != nil {
		tb.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

// tickingClock advances one second per call so rows get distinct timestamps
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTickingClock() *tickingClock {
	return &tickingClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestReferralService(tb testing.TB) (*ReferralService, *gorm.DB) {
	db := setupTestDB(tb)
	log, _ := test.NewNullLogger()
	svc := NewReferralService(repository.NewRepository(db), log)
	svc.now = newTickingClock().Now
	return svc, db
}

type staticDirectory struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (d *staticDirectory) ListUserIDs(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return append([]string(nil), d.ids...), nil
}

func (d *staticDirectory) set(ids []string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = ids
	d.err = err
}

func newTestNotificationService(tb testing.TB, users UserDirectory) (*NotificationService, *gorm.DB) {
	db := setupTestDB(tb)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	svc := NewNotificationService(repository.NewRepository(db), users, log)
	svc.now = newTickingClock().Now
	return svc, db
}
