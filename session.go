package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"accweb/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionCookieName = "acct_session"
	flashCookieName   = "acct_flash"
	sessionTTL        = 24 * time.Hour
	sessionIssuer     = "accweb"
)

const signInPath = "/accounts/sign_in/"

type sessionClaims struct {
	Username string `json:"username"`
	// AuthHash binds the session to the current password hash so a
	// password change invalidates sessions minted before it.
	AuthHash string `json:"pwh"`
	jwt.RegisteredClaims
}

// authHashFragment derives the session auth-hash claim from the stored
// bcrypt hash. Only a digest prefix goes into the token.
func authHashFragment(hashedPassword []byte) string {
	sum := sha256.Sum256(hashedPassword)
	return hex.EncodeToString(sum[:])[:12]
}

// mintSessionToken creates the signed session token for a user.
func mintSessionToken(user *models.User) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Username: user.Username,
		AuthHash: authHashFragment(user.HashedPassword),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// parseSessionToken verifies a session token and returns its claims.
func parseSessionToken(tokenString string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid session token")
	}
	if claims.Issuer != sessionIssuer {
		return nil, errors.New("invalid session issuer")
	}
	return claims, nil
}

func establishSession(c *gin.Context, user *models.User) error {
	token, err := mintSessionToken(user)
	if err != nil {
		return err
	}
	c.SetCookie(sessionCookieName, token, int(sessionTTL/time.Second), "/", "", false, true)
	return nil
}

func clearSession(c *gin.Context) {
	c.SetCookie(sessionCookieName, "", -1, "/", "", false, true)
}

// redirectToSignIn sends an unauthenticated client to the sign-in page
// with the original path preserved in the next parameter.
func redirectToSignIn(c *gin.Context) {
	next := url.Values{"next": {c.Request.URL.Path}}
	c.Redirect(http.StatusFound, signInPath+"?"+next.Encode())
	c.Abort()
}

// sessionAuthMiddleware gates a route on a valid session cookie. It
// loads the session user and rejects tokens minted before the last
// password change.
func sessionAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie(sessionCookieName)
		if err != nil || tokenString == "" {
			redirectToSignIn(c)
			return
		}
		claims, err := parseSessionToken(tokenString)
		if err != nil {
			redirectToSignIn(c)
			return
		}
		id, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil || id == 0 {
			redirectToSignIn(c)
			return
		}
		var user models.User
		if err := db.First(&user, uint(id)).Error; err != nil {
			redirectToSignIn(c)
			return
		}
		if claims.AuthHash != authHashFragment(user.HashedPassword) {
			// stale session from before a password change
			clearSession(c)
			redirectToSignIn(c)
			return
		}
		c.Set("user", &user)
		c.Next()
	}
}

// currentUser fetches the session user placed in the context by
// sessionAuthMiddleware.
func currentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get("user")
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

// Flash messages survive exactly one redirect via a short-lived cookie.

func setFlash(c *gin.Context, level, msg string) {
	c.SetCookie(flashCookieName, url.QueryEscape(level+"|"+msg), 300, "/", "", false, false)
}

func takeFlash(c *gin.Context) (level, msg string, ok bool) {
	raw, err := c.Cookie(flashCookieName)
	if err != nil || raw == "" {
		return "", "", false
	}
	c.SetCookie(flashCookieName, "", -1, "/", "", false, false)
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return "", "", false
	}
	parts := strings.SplitN(decoded, "|", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// flashJSON renders the pending flash (if any) alongside a payload.
func flashJSON(c *gin.Context, payload gin.H) gin.H {
	if level, msg, ok := takeFlash(c); ok {
		payload["flash"] = gin.H{"level": level, "message": msg}
	}
	return payload
}
