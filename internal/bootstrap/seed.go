package bootstrap

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/improvdb/improvdb-api/internal/config"
	"github.com/improvdb/improvdb-api/internal/entity"
	"github.com/improvdb/improvdb-api/pkg/logger"
)

var defaultCategories = []string{
	"warm-ups",
	"character",
	"scene work",
	"listening",
	"group mind",
	"narrative",
	"musicality",
}

// Seed creates the initial admin account and the starter category set.
// It is idempotent and safe to run on every boot.
func Seed(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	if cfg.AdminEmail != "" {
		if err := seedAdmin(ctx, db, cfg); err != nil {
			return err
		}
	}
	return seedCategories(ctx, db)
}

func seedAdmin(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	var existing entity.User
	err := db.WithContext(ctx).Where("email = ?", cfg.AdminEmail).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := entity.User{
		Name:         "Administrator",
		Email:        cfg.AdminEmail,
		PasswordHash: string(hash),
		Role:         entity.RoleAdmin,
	}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		return err
	}
	logger.L().Info("seeded admin account", zap.String("email", cfg.AdminEmail))
	return nil
}

func seedCategories(ctx context.Context, db *gorm.DB) error {
	for _, name := range defaultCategories {
		var category entity.Category
		err := db.WithContext(ctx).Where("name = ?", name).First(&category).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.WithContext(ctx).Create(&entity.Category{Name: name}).Error; err != nil {
			return err
		}
	}
	return nil
}
