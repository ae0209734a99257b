package main

import (
	"os"
	"time"

	"accweb/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var db *gorm.DB

func initDB(cfg Config) {
	var err error
	if cfg.DBDSN == "" {
		logger.Fatal("DB_DSN is not set. This project requires a Postgres DSN in DB_DSN.")
	}
	db, err = gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{})
	if err != nil {
		logger.Fatalw("failed to connect postgres database", "err", err)
	}
	if cfg.DBAutoMigrate {
		// Migrate models individually so a failure on one doesn't block others
		if err := db.AutoMigrate(&models.User{}); err != nil {
			logger.Warnw("migration warning (users)", "err", err)
		}
		if err := db.AutoMigrate(&models.Profile{}); err != nil {
			logger.Warnw("migration warning (profiles)", "err", err)
		}
	}
	seedDB()
}

// seedDB creates the demo account on an empty database so the app is
// usable right after a fresh migrate.
func seedDB() {
	var count int64
	db.Model(&models.User{}).Where("username = ?", "demo").Count(&count)
	if count == 0 {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("demo-pass-321"), bcrypt.DefaultCost)
		demo := models.User{
			Username:       "demo",
			FirstName:      "Demo",
			LastName:       "User",
			Email:          "demo@example.com",
			HashedPassword: hashedPassword,
			Active:         true,
		}
		if err := db.Create(&demo).Error; err != nil {
			logger.Warnw("failed to seed demo user", "err", err)
		} else {
			logger.Infow("seeded demo user", "username", "demo")
		}
		// the demo profile exercises the lazy one-to-one relation
		var pcount int64
		db.Model(&models.Profile{}).Where("user_id = ?", demo.ID).Count(&pcount)
		if pcount == 0 && demo.ID != 0 {
			profile := models.Profile{
				UserID: demo.ID,
				Birth:  time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
				Bio:    "A little info about me...",
			}
			if err := db.Create(&profile).Error; err != nil {
				logger.Warnw("failed to create profile for demo user", "err", err)
			}
		}
	}
	ensureUploadBase()
}

// ensureUploadBase creates the base uploads directory.
func ensureUploadBase() {
	base := uploadBaseDir()
	if err := os.MkdirAll(base, 0755); err != nil {
		logger.Warnw("failed to create upload base dir", "dir", base, "err", err)
	}
}

// uploadBaseDir returns the base directory for stored avatars
// (configurable via UPLOAD_BASE env).
func uploadBaseDir() string {
	if v := os.Getenv("UPLOAD_BASE"); v != "" {
		return v
	}
	return "uploads"
}
