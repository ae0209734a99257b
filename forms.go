package main

import (
	"strings"
	"time"

	"accweb/models"
	"accweb/pkg/password"
	"accweb/pkg/validate"

	"golang.org/x/crypto/bcrypt"
)

// FieldErrors collects validation messages keyed by form field.
type FieldErrors map[string][]string

func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

func (fe FieldErrors) HasErrors() bool {
	return len(fe) > 0
}

// Field describes one form field for the rendering layer (declarative
// replacement for widget introspection).
type Field struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// SignInForm carries the authentication submission. Credential checks
// happen in Authenticate, not here.
type SignInForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

// SignInFields is the ordered field list for the sign-in page.
var SignInFields = []Field{
	{"username", "Username", true},
	{"password", "Password", true},
}

// SignUpForm carries the account-creation submission.
type SignUpForm struct {
	Username    string `form:"username" json:"username"`
	FirstName   string `form:"first_name" json:"first_name"`
	LastName    string `form:"last_name" json:"last_name"`
	Email       string `form:"email" json:"email"`
	VerifyEmail string `form:"verify_email" json:"verify_email"`
	Password1   string `form:"password1" json:"-"`
	Password2   string `form:"password2" json:"-"`
}

// SignUpFields is the ordered field list for the sign-up page.
var SignUpFields = []Field{
	{"username", "Username", true},
	{"first_name", "First name", false},
	{"last_name", "Last name", false},
	{"email", "Email", true},
	{"verify_email", "Verify your email", true},
	{"password1", "Password", true},
	{"password2", "Password confirmation", true},
}

func (f *SignUpForm) Validate() FieldErrors {
	errs := FieldErrors{}
	f.Username = strings.TrimSpace(f.Username)
	if f.Username == "" {
		errs.Add("username", "This field is required.")
	}
	if f.Email == "" {
		errs.Add("email", "This field is required.")
	} else if !looksLikeEmail(f.Email) {
		errs.Add("email", "Enter a valid email address.")
	}
	if f.Email != f.VerifyEmail {
		errs.Add("verify_email", "Email doesn't match the previously entered email.")
	}
	if f.Password1 == "" {
		errs.Add("password1", "This field is required.")
	}
	if f.Password1 != f.Password2 {
		errs.Add("password2", "The two password fields didn't match.")
	} else {
		id := password.Identity{
			Username:  f.Username,
			FirstName: f.FirstName,
			LastName:  f.LastName,
			Email:     f.Email,
		}
		for _, msg := range password.Validate(f.Password1, id) {
			errs.Add("password2", msg)
		}
	}
	return errs
}

// ProfileForm carries the profile create/edit submission. The avatar
// file is multipart and handled separately by the handler.
type ProfileForm struct {
	Birth string `form:"birth" json:"birth"`
	Bio   string `form:"bio" json:"bio"`

	birth time.Time // set by Validate
}

// ProfileFields is the ordered field list for the profile pages.
var ProfileFields = []Field{
	{"birth", "Date of birth", true},
	{"bio", "Your bio...", true},
	{"avatar", "Avatar", false},
}

func (f *ProfileForm) Validate() FieldErrors {
	errs := FieldErrors{}
	t, err := validate.Date(f.Birth)
	if err != nil {
		errs.Add("birth", err.Error())
	} else {
		f.birth = t
	}
	if err := validate.Bio(f.Bio); err != nil {
		errs.Add("bio", err.Error())
	}
	return errs
}

// BirthTime returns the parsed birth date. Valid only after a
// successful Validate.
func (f *ProfileForm) BirthTime() time.Time {
	return f.birth
}

// Changed reports whether the submitted values differ from the bound
// profile. Drives the "updated" vs "no changes" message on edit.
func (f *ProfileForm) Changed(p *models.Profile) bool {
	return !f.birth.Equal(p.Birth) || f.Bio != p.Bio
}

// EditUserForm carries the user part of a profile edit. The username is
// immutable after creation and deliberately absent here.
type EditUserForm struct {
	FirstName string `form:"first_name" json:"first_name"`
	LastName  string `form:"last_name" json:"last_name"`
	Email     string `form:"email" json:"email"`
}

// EditUserFields is the ordered field list for the edit-profile page.
var EditUserFields = []Field{
	{"first_name", "First name", false},
	{"last_name", "Last name", false},
	{"email", "Email", true},
}

func (f *EditUserForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if f.Email == "" {
		errs.Add("email", "This field is required.")
	} else if !looksLikeEmail(f.Email) {
		errs.Add("email", "Enter a valid email address.")
	}
	return errs
}

// Changed reports whether the submitted values differ from the bound user.
func (f *EditUserForm) Changed(u *models.User) bool {
	return f.FirstName != u.FirstName || f.LastName != u.LastName || f.Email != u.Email
}

// PasswordChangeForm carries a password-change submission.
type PasswordChangeForm struct {
	OldPassword  string `form:"old_password"`
	NewPassword1 string `form:"new_password1"`
	NewPassword2 string `form:"new_password2"`
}

// PasswordChangeFields is the ordered field list for the change-password page.
var PasswordChangeFields = []Field{
	{"old_password", "Old password", true},
	{"new_password1", "New password", true},
	{"new_password2", "New password confirmation", true},
}

func (f *PasswordChangeForm) Validate(user *models.User) FieldErrors {
	errs := FieldErrors{}
	if err := bcrypt.CompareHashAndPassword(user.HashedPassword, []byte(f.OldPassword)); err != nil {
		errs.Add("old_password", "Your old password was entered incorrectly. Please enter it again.")
	}
	if f.NewPassword1 != f.NewPassword2 {
		errs.Add("new_password2", "The two password fields didn't match.")
		return errs
	}
	id := password.Identity{
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
	}
	for _, msg := range password.Validate(f.NewPassword1, id) {
		errs.Add("new_password2", msg)
	}
	return errs
}

func looksLikeEmail(s string) bool {
	at := strings.Index(s, "@")
	if at < 1 || at == len(s)-1 {
		return false
	}
	return !strings.ContainsAny(s, " \t")
}
