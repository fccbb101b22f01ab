package lilac

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const (
	authCookieName = "auth-token"
	bcryptCost     = 12
	userContextKey = "lilac.user"
)

// ErrInvalidCredentials is returned for any failed login.
var ErrInvalidCredentials = errors.New("invalid credentials")

// User is the identity carried by an auth token.
type User struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

type tokenClaims struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// Authenticator checks the single admin account and issues and verifies
// signed tokens.
type Authenticator struct {
	username     string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

// NewAuthenticator returns an Authenticator for one admin account.
func NewAuthenticator(username, passwordHash string, secret []byte, ttl time.Duration) *Authenticator {
	return &Authenticator{
		username:     username,
		passwordHash: []byte(passwordHash),
		secret:       secret,
		ttl:          ttl,
		now:          time.Now,
	}
}

// Authenticate succeeds only for the configured username and the password
// matching the configured bcrypt hash.
func (au *Authenticator) Authenticate(username, password string) (User, error) {
	if username == "" || password == "" || au.username == "" {
		return User{}, ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(au.username)) == 1
	// Compare the password even for an unknown user so both paths cost the
	// same.
	passErr := bcrypt.CompareHashAndPassword(au.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return User{}, ErrInvalidCredentials
	}
	return User{Username: au.username, IsAdmin: true}, nil
}

// IssueToken signs a token for u that expires after the configured TTL.
func (au *Authenticator) IssueToken(u User) (string, error) {
	now := au.now()
	claims := tokenClaims{
		Username: u.Username,
		IsAdmin:  u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(au.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(au.secret)
}

// VerifyToken checks the signature and expiry of token and returns its user.
func (au *Authenticator) VerifyToken(token string) (User, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return au.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(au.now),
	)
	if err != nil {
		return User{}, fmt.Errorf("verify token: %w", err)
	}
	return User{Username: claims.Username, IsAdmin: claims.IsAdmin}, nil
}

// HashPassword returns a bcrypt hash of password for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (a *App) setAuthCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.Config.TokenTTL / time.Second),
		HttpOnly: true,
		Secure:   a.Config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *App) clearAuthCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.Config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// currentUser returns the user from a valid auth cookie.
func (a *App) currentUser(c echo.Context) (User, bool) {
	cookie, err := c.Cookie(authCookieName)
	if err != nil || cookie.Value == "" {
		return User{}, false
	}
	u, err := a.Auth.VerifyToken(cookie.Value)
	if err != nil {
		c.Logger().Debugf("auth: %v", err)
		return User{}, false
	}
	return u, true
}

// requireAdmin rejects requests without a valid admin token.
func (a *App) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		u, ok := a.currentUser(c)
		if !ok || !u.IsAdmin {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}
		c.Set(userContextKey, u)
		return next(c)
	}
}
