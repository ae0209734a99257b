package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"accweb/models"
	"accweb/pkg/password"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("usage: go run ./cmd/create_user <username> <password> [email]")
		os.Exit(2)
	}
	username := os.Args[1]
	plaintext := os.Args[2]
	email := ""
	if len(os.Args) > 3 {
		email = os.Args[3]
	}

	if msgs := password.Validate(plaintext, password.Identity{Username: username, Email: email}); len(msgs) > 0 {
		for _, m := range msgs {
			fmt.Println(m)
		}
		os.Exit(1)
	}

	dsn := os.Getenv("DB_DSN")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal("DB_DSN not set in environment")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}

	// check existing
	var existing models.User
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		fmt.Printf("user %s already exists (id=%d)\n", username, existing.ID)
		os.Exit(0)
	}

	hpw, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("bcrypt failed: %v", err)
	}
	user := models.User{Username: username, Email: email, HashedPassword: hpw, Active: true}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("failed to create user: %v", err)
	}
	fmt.Printf("created user %s id=%d\n", username, user.ID)
}
