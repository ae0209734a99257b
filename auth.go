package main

import (
	"errors"
	"strings"

	"accweb/models"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("A user with that username already exists.")
	ErrInvalidCredentials = errors.New("Username or password is incorrect.")
	ErrAccountDisabled    = errors.New("That user account has been disabled.")
)

// RegisterUser persists a new account from a validated sign-up form.
// The plaintext password never touches the User row.
func RegisterUser(form *SignUpForm) (*models.User, error) {
	username := strings.TrimSpace(form.Username)
	// pre-check existing (optimistic)
	var existing models.User
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		return nil, ErrUserExists
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(form.Password1), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Username:       username,
		FirstName:      form.FirstName,
		LastName:       form.LastName,
		Email:          form.Email,
		HashedPassword: hashedPassword,
		Active:         true,
	}
	if err := db.Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) { // race condition after initial check
			return nil, ErrUserExists
		}
		return nil, err
	}
	return &user, nil
}

// Authenticate checks credentials. A missing user and a wrong password
// produce the same error so usernames cannot be enumerated.
func Authenticate(username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.HashedPassword, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrAccountDisabled
	}
	return &user, nil
}

// SetPassword stores a new bcrypt hash for the user.
func SetPassword(user *models.User, plaintext string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.HashedPassword = hashed
	return db.Model(user).Update("hashed_password", hashed).Error
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint") || strings.Contains(s, "already exists")
}
