package main

import (
	"os"

	"github.com/gin-gonic/gin"
)

var jwtSecret []byte // loaded from env JWT_SECRET (fallback to dev default)

func main() {
	cfg := LoadConfig()
	if err := initLogger(cfg.LogLevel); err != nil {
		panic(err)
	}
	defer logger.Sync()
	jwtSecret = []byte(cfg.JWTSecret)

	// Support a lightweight migrate command: `./accweb migrate`
	// It runs AutoMigrate and seeding then exits. Useful for CI or manual DB setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB(cfg)
		logger.Info("migration and seeding completed")
		return
	}

	initDB(cfg)

	r := gin.Default()

	setupRoutes(r)

	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatalw("server stopped", "err", err)
	}
}
