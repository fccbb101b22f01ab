// Package lilac is a blog content API built with Go and Echo. It serves
// published posts, an authenticated admin API for posts and images, RSS and
// a sitemap, over interchangeable storage backends.
package lilac

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	glog "github.com/labstack/gommon/log"

	"github.com/eringen/lilac/storage"
)

// App is the central lilac application. It wires together storage, the
// post cache, authentication, handlers and middleware.
type App struct {
	Config Config
	Echo   *echo.Echo
	Posts  storage.Repository
	Images storage.ImageStore
	Cache  *PostCache
	Auth   *Authenticator

	loginLimiter *LoginLimiter
	customRoutes []func(*App)
	closers      []func() error
	now          func() time.Time
}

// New creates an App with the given configuration. Call Setup before
// serving.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		now:    time.Now,
	}
	a.Echo.HideBanner = true
	a.Echo.Logger.SetLevel(logLevel(cfg.LogLevel))

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Setup validates the configuration, opens the storage backends and
// registers middleware and routes.
func (a *App) Setup(ctx context.Context) error {
	if a.Config.AdminUsername == "" || a.Config.AdminPasswordHash == "" {
		return errors.New("lilac: ADMIN_USERNAME and ADMIN_PASSWORD_HASH are required")
	}
	if a.Config.JWTSecret == "" {
		return errors.New("lilac: JWT_SECRET is required")
	}
	a.Auth = NewAuthenticator(a.Config.AdminUsername, a.Config.AdminPasswordHash, []byte(a.Config.JWTSecret), a.Config.TokenTTL)
	a.Auth.now = a.now

	if err := a.OpenStorage(ctx); err != nil {
		return err
	}

	a.Cache = NewPostCache(a.Posts, a.Config.PostCacheTTL)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)
	a.loginLimiter.now = a.now
	a.closers = append(a.closers, func() error {
		a.loginLimiter.Stop()
		return nil
	})

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Start serves HTTP on Config.Addr until Shutdown is called.
func (a *App) Start() error {
	a.Echo.Logger.Infof("lilac: listening on %s (posts: %s, images: %s)", a.Config.Addr, a.Config.Backend, a.Config.ImageBackend)
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully and releases storage.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	return errors.Join(err, a.Close())
}

func (a *App) setupRoutes() {
	e := a.Echo
	admin := a.requireAdmin
	throttle := echo.WrapMiddleware(writeThrottle())

	e.GET("/healthz", a.handleHealth)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/sitemap.xml", a.handleSitemap)

	api := e.Group("/api")
	api.GET("/posts", a.handleListPosts)
	api.POST("/posts", a.handleCreatePost, admin, throttle)
	api.GET("/posts/search", a.handleSearchPosts)
	api.GET("/posts/:slug", a.handleGetPost)
	api.PUT("/posts/:slug", a.handleUpdatePost, admin, throttle)
	api.DELETE("/posts/:slug", a.handleDeletePost, admin, throttle)
	api.GET("/tags", a.handleListTags)
	api.GET("/tags/:tag/posts", a.handleTagPosts)
	api.GET("/tags/:tag/:url", a.handlePostByURL)
	api.GET("/images/:filename", a.handleServeImage)

	adm := api.Group("/admin")
	adm.POST("/login", a.handleLogin)
	adm.POST("/logout", a.handleLogout)
	adm.GET("/me", a.handleMe)

	protected := adm.Group("", admin)
	protected.GET("/posts", a.handleAdminListPosts)
	protected.POST("/posts", a.handleCreatePost, throttle)
	protected.GET("/posts/:id", a.handleAdminGetPost)
	protected.PUT("/posts/:id", a.handleUpdatePost, throttle)
	protected.DELETE("/posts/:id", a.handleDeletePost, throttle)
	protected.POST("/upload", a.handleImageUpload, throttle)
	protected.GET("/images", a.handleImageList)
	protected.DELETE("/images/:filename", a.handleImageDelete, throttle)
}

// Close releases storage resources. Call this when the app is shutting down.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func logLevel(s string) glog.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return glog.DEBUG
	case "warn", "warning":
		return glog.WARN
	case "error":
		return glog.ERROR
	case "off":
		return glog.OFF
	}
	return glog.INFO
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("lilac: required environment variable %s is not set", key)
	}
	return v
}

func (a *App) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()
	if err := storage.Ping(ctx, a.Posts); err != nil {
		c.Logger().Errorf("health: %v", err)
		return statusError(http.StatusServiceUnavailable, "Storage unavailable")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "backend": a.Config.Backend})
}
