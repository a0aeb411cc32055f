package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/improvdb/improvdb-api/internal/entity"
)

var dbCounter atomic.Int64

// NewTestDB opens a fresh in-memory sqlite database with the full schema
// migrated. Each call gets its own database so tests stay independent;
// shared cache keeps the database alive across connections in the pool.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", dbCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	err = db.AutoMigrate(
		&entity.User{},
		&entity.Category{},
		&entity.Resource{},
		&entity.LessonPlan{},
		&entity.LessonPlanSection{},
		&entity.LessonPlanItem{},
		&entity.Favourite{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}
