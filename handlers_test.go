package main

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"accweb/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	jwtSecret = []byte("unit-test-secret")
	os.Exit(m.Run())
}

func setupMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, PreferSimpleProtocol: true}), &gorm.Config{})
	require.NoError(t, err)
	db = gdb
	t.Cleanup(func() { sqlDB.Close() })
	return mock
}

func newTestRouter() *gin.Engine {
	r := gin.New()
	setupRoutes(r)
	return r
}

var userColumns = []string{
	"id", "created_at", "updated_at", "username",
	"first_name", "last_name", "email", "hashed_password", "active",
}

var profileColumns = []string{
	"id", "created_at", "updated_at", "user_id",
	"birth", "bio", "avatar_path", "avatar_content_type",
}

func testUser(t *testing.T, plaintext string) *models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:             1,
		Username:       "testuser",
		FirstName:      "test_fn",
		LastName:       "test_ln",
		Email:          "test@email.com",
		HashedPassword: hashed,
		Active:         true,
	}
}

func userRows(u *models.User) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userColumns).AddRow(
		u.ID, now, now, u.Username, u.FirstName, u.LastName, u.Email, u.HashedPassword, u.Active,
	)
}

func performForm(r http.Handler, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func performGet(r http.Handler, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, user *models.User) *http.Cookie {
	t.Helper()
	token, err := mintSessionToken(user)
	require.NoError(t, err)
	return &http.Cookie{Name: sessionCookieName, Value: token}
}

// flashMessage decodes the flash cookie set on a response, if any.
func flashMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name != flashCookieName || ck.Value == "" {
			continue
		}
		once, err := url.QueryUnescape(ck.Value)
		require.NoError(t, err)
		twice, err := url.QueryUnescape(once)
		require.NoError(t, err)
		return twice
	}
	return ""
}

func hasSessionCookie(rec *httptest.ResponseRecorder) bool {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == sessionCookieName && ck.Value != "" {
			return true
		}
	}
	return false
}

func TestGatedRouteRedirectsToSignIn(t *testing.T) {
	setupMockDB(t)
	r := newTestRouter()

	rec := performGet(r, "/accounts/profile/1/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/accounts/sign_in/?next=%2Faccounts%2Fprofile%2F1%2F", rec.Header().Get("Location"))

	rec = performGet(r, "/accounts/profile_edit/1/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/accounts/sign_in/?next=%2Faccounts%2Fprofile_edit%2F1%2F", rec.Header().Get("Location"))
}

func TestSignInInvalidCredentials(t *testing.T) {
	mock := setupMockDB(t)
	r := newTestRouter()

	mock.ExpectQuery(`SELECT .* FROM "users"`).WillReturnRows(sqlmock.NewRows(userColumns))

	rec := performForm(r, "/accounts/sign_in/", url.Values{
		"username": {"nobody"},
		"password": {"whatever1A"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Username or password is incorrect.")
	assert.False(t, hasSessionCookie(rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignInDisabledAccount(t *testing.T) {
	mock := setupMockDB(t)
	r := newTestRouter()

	user := testUser(t, "d8&3h2jv739841#")
	user.Active = false
	mock.ExpectQuery(`SELECT .* FROM "users"`).WillReturnRows(userRows(user))

	rec := performForm(r, "/accounts/sign_in/", url.Values{
		"username": {"testuser"},
		"password": {"d8&3h2jv739841#"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "That user account has been disabled.")
	assert.False(t, hasSessionCookie(rec))
}

func TestSignInSuccess(t *testing.T) {
	mock := setupMockDB(t)
	r := newTestRouter()

	user := testUser(t, "d8&3h2jv739841#")
	mock.ExpectQuery(`SELECT .* FROM "users"`).WillReturnRows(userRows(user))

	rec := performForm(r, "/accounts/sign_in/?next=%2Faccounts%2Fprofile%2F1%2F", url.Values{
		"username": {"testuser"},
		"password": {"d8&3h2jv739841#"},
	})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/accounts/profile/1/", rec.Header().Get("Location"))
	assert.True(t, hasSessionCookie(rec))
}

func TestSignUpEmailMismatch(t *testing.T) {
	setupMockDB(t)
	r := newTestRouter()

	rec := performForm(r, "/accounts/sign_up/", url.Values{
		"username":     {"testuser"},
		"first_name":   {"test_fn"},
		"last_name":    {"test_ln"},
		"email":        {"test@email.com"},
		"verify_email": {""},
		"password1":    {"efj8eE8*3jaaaaaa#"},
		"password2":    {"efj8eE8*3jaaaaaa#"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email doesn't match the previously entered email.")
	assert.False(t, hasSessionCookie(rec))
}

func TestSignUpSuccess(t *testing.T) {
	mock := setupMockDB(t)
	r := newTestRouter()

	// optimistic duplicate pre-check finds nothing
	mock.ExpectQuery(`SELECT .* FROM "users"`).WillReturnRows(sqlmock.NewRows(userColumns))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	rec := performForm(r, "/accounts/sign_up/", url.Values{
		"username":     {"testuser"},
		"first_name":   {"test_fn"},
		"last_name":    {"test_ln"},
		"email":        {"test@email.com"},
		"verify_email": {"test@email.com"},
		"password1":    {"efj8eE8*3jaaaaaa#"},
		"password2":    {"efj8eE8*3jaaaaaa#"},
	})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, homePath, rec.Header().Get("Location"))
	assert.True(t, hasSessionCookie(rec))
	assert.Equal(t, "success|You're now a user! You've been signed in, too.", flashMessage(t, rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignOutClearsSession(t *testing.T) {
	setupMockDB(t)
	r := newTestRouter()

	rec := performForm(r, "/accounts/sign_out/", url.Values{})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, homePath, rec.Header().Get("Location"))
	assert.Equal(t, "success|You've been signed out. Come back soon!", flashMessage(t, rec))

	var cleared bool
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == sessionCookieName && ck.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}

func TestProfileViewMissingProfileRedirects(t *testing.T) {
	mock := setupMockDB(t)
	r := newTestRouter()

	user := testUser(t, "d8&3h2jv739841#")
	mock.ExpectQuery(`SELECT .* FROM "users"`).WillReturnRows(userRows(user))
	mock.ExpectQuery(`SELECT .* FROM "profiles"`).WillReturnRows(sqlmock.NewRows(profileColumns))

	rec := performGet(r, "/accounts/profile/1/", sessionCookie(t, user))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/accounts/profile_create/1/", rec.Header().Get("Location"))
	assert.Equal(t, "info|Provide more detail about yourself...", flashMessage(t, rec))
}

func TestProfileView(t *testing.T) {
	mock := setupMockDB(t)
	r := newTestRouter()

	user := testUser(t, "d8&3h2jv739841#")
	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM "users"`).WillReturnRows(userRows(user))
	mock.ExpectQuery(`SELECT .* FROM "profiles"`).WillReturnRows(
		sqlmock.NewRows(profileColumns).AddRow(
			3, now, now, 1, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
			"A little info about me...", "", "",
		))

	rec := performGet(r, "/accounts/profile/1/", sessionCookie(t, user))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "A little info about me...")
	assert.Contains(t, rec.Body.String(), "2019-01-01")
	assert.NotContains(t, rec.Body.String(), "hashed_password")
}

func TestPathUserMismatchForbidden(t *testing.T) {
	mock := setupMockDB(t)
	r := newTestRouter()

	user := testUser(t, "d8&3h2jv739841#")
	mock.ExpectQuery(`SELECT .* FROM "users"`).WillReturnRows(userRows(user))

	rec := performGet(r, "/accounts/profile/2/", sessionCookie(t, user))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStaleSessionAfterPasswordChangeElsewhere(t *testing.T) {
	mock := setupMockDB(t)
	r := newTestRouter()

	user := testUser(t, "d8&3h2jv739841#")
	ck := sessionCookie(t, user)
	// the stored hash has changed since the token was minted
	rehashed, err := bcrypt.GenerateFromPassword([]byte("completely-new-1A"), bcrypt.MinCost)
	require.NoError(t, err)
	user.HashedPassword = rehashed
	mock.ExpectQuery(`SELECT .* FROM "users"`).WillReturnRows(userRows(user))

	rec := performGet(r, "/accounts/profile/1/", ck)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), signInPath)
}

func TestEditProfileChanged(t *testing.T) {
	mock := setupMockDB(t)
	r := newTestRouter()

	user := testUser(t, "d8&3h2jv739841#")
	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM "users"`).WillReturnRows(userRows(user))
	mock.ExpectQuery(`SELECT .* FROM "profiles"`).WillReturnRows(
		sqlmock.NewRows(profileColumns).AddRow(
			3, now, now, 1, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
			"A little info about me...", "", "",
		))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "profiles" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec := performForm(r, "/accounts/profile_edit/1/", url.Values{
		"first_name": {"test_fn"},
		"last_name":  {"test_ln"},
		"email":      {"test@email.com"},
		"birth":      {"2019-01-01"},
		"bio":        {"Now with much more detail."},
	}, sessionCookie(t, user))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/accounts/profile/1/", rec.Header().Get("Location"))
	assert.Equal(t, "success|Your profile is updated!", flashMessage(t, rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEditProfileUnchanged(t *testing.T) {
	mock := setupMockDB(t)
	r := newTestRouter()

	user := testUser(t, "d8&3h2jv739841#")
	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM "users"`).WillReturnRows(userRows(user))
	mock.ExpectQuery(`SELECT .* FROM "profiles"`).WillReturnRows(
		sqlmock.NewRows(profileColumns).AddRow(
			3, now, now, 1, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
			"A little info about me...", "", "",
		))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "profiles" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec := performForm(r, "/accounts/profile_edit/1/", url.Values{
		"first_name": {"test_fn"},
		"last_name":  {"test_ln"},
		"email":      {"test@email.com"},
		"birth":      {"2019-01-01"},
		"bio":        {"A little info about me..."},
	}, sessionCookie(t, user))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "success|No profile changes applied...", flashMessage(t, rec))
}

func TestEditProfileValidationErrors(t *testing.T) {
	mock := setupMockDB(t)
	r := newTestRouter()

	user := testUser(t, "d8&3h2jv739841#")
	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM "users"`).WillReturnRows(userRows(user))
	mock.ExpectQuery(`SELECT .* FROM "profiles"`).WillReturnRows(
		sqlmock.NewRows(profileColumns).AddRow(
			3, now, now, 1, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
			"A little info about me...", "", "",
		))

	rec := performForm(r, "/accounts/profile_edit/1/", url.Values{
		"first_name": {"test_fn"},
		"last_name":  {"test_ln"},
		"email":      {"test@email.com"},
		"birth":      {"1/1/39"},
		"bio":        {"About me."},
	}, sessionCookie(t, user))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid date format")
	assert.Contains(t, rec.Body.String(), "Add more detail to your bio.")
}

func TestChangePasswordIdentityRejected(t *testing.T) {
	mock := setupMockDB(t)
	r := newTestRouter()

	user := testUser(t, "d8&3h2jv739841#")
	mock.ExpectQuery(`SELECT .* FROM "users"`).WillReturnRows(userRows(user))

	rec := performForm(r, "/accounts/profile/change_password/1/", url.Values{
		"old_password":  {"d8&3h2jv739841#"},
		"new_password1": {"xxtestuserxx9A$"},
		"new_password2": {"xxtestuserxx9A$"},
	}, sessionCookie(t, user))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/accounts/profile/change_password/1/", rec.Header().Get("Location"))
	assert.Equal(t, "info|Password cannot contain: Username; First Name; Last Name", flashMessage(t, rec))
}

func TestChangePasswordSuccess(t *testing.T) {
	mock := setupMockDB(t)
	r := newTestRouter()

	user := testUser(t, "d8&3h2jv739841#")
	mock.ExpectQuery(`SELECT .* FROM "users"`).WillReturnRows(userRows(user))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec := performForm(r, "/accounts/profile/change_password/1/", url.Values{
		"old_password":  {"d8&3h2jv739841#"},
		"new_password1": {"k*$ug3E(dfbf^jyo"},
		"new_password2": {"k*$ug3E(dfbf^jyo"},
	}, sessionCookie(t, user))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, homePath, rec.Header().Get("Location"))
	// session stays authenticated against the new hash
	assert.True(t, hasSessionCookie(rec))
	assert.Equal(t, "success|Your password is updated!", flashMessage(t, rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangePasswordValidatorErrors(t *testing.T) {
	mock := setupMockDB(t)
	r := newTestRouter()

	user := testUser(t, "d8&3h2jv739841#")
	mock.ExpectQuery(`SELECT .* FROM "users"`).WillReturnRows(userRows(user))

	rec := performForm(r, "/accounts/profile/change_password/1/", url.Values{
		"old_password":  {"d8&3h2jv739841#"},
		"new_password1": {"secret"},
		"new_password2": {"secret"},
	}, sessionCookie(t, user))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "This password is too short.")
}
