package lilac

import (
	"strconv"
	"strings"
	"time"

	"github.com/eringen/lilac/storage"
)

// Storage backends selectable through Config.Backend and Config.ImageBackend.
const (
	BackendFilesystem = "filesystem"
	BackendMemory     = "memory"
	BackendMongoDB    = "mongodb"
	BackendSQLite     = "sqlite"
	BackendS3         = "s3"
)

// Config holds all configuration for a lilac site.
type Config struct {
	Name        string // Site name (default "Blog")
	URL         string // Canonical URL (default "http://localhost:3000")
	Description string // Site description for RSS

	Addr string // Listen address (default ":3000")

	Backend      string // Post storage: filesystem, memory, mongodb or sqlite (default filesystem)
	ImageBackend string // Image storage: filesystem, memory, mongodb or s3 (default follows Backend)

	ContentDir   string // MDX posts (default "content/posts")
	BackupDir    string // Copies of deleted posts (default "content/backups")
	ImageDir     string // Uploaded images (default "public/images/posts")
	DatabasePath string // SQLite path (default "data/blog.db")

	MongoURI      string
	MongoDatabase string // default "lilac"

	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	AdminUsername     string // Required
	AdminPasswordHash string // Required: bcrypt hash
	JWTSecret         string // Required: HMAC key for auth tokens
	TokenTTL          time.Duration
	CookieSecure      bool // Set true for HTTPS

	PostCacheTTL     time.Duration // default 5min
	MaxUploadSize    int64         // default 5MB
	ImageMaxWidth    int           // Wider JPEG/PNG uploads are downscaled (default 1600)
	DefaultPageLimit int           // default 12
	MaxPageLimit     int           // default 50

	LogLevel string // debug, info, warn, error (default info)
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.Backend == "" {
		c.Backend = BackendFilesystem
	}
	if c.ImageBackend == "" {
		c.ImageBackend = c.Backend
		if c.Backend == BackendSQLite {
			c.ImageBackend = BackendFilesystem
		}
	}
	if c.ContentDir == "" {
		c.ContentDir = "content/posts"
	}
	if c.BackupDir == "" {
		c.BackupDir = "content/backups"
	}
	if c.ImageDir == "" {
		c.ImageDir = "public/images/posts"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/blog.db"
	}
	if c.MongoDatabase == "" {
		c.MongoDatabase = "lilac"
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = 10 * time.Minute
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = 5 * time.Minute
	}
	if c.MaxUploadSize == 0 {
		c.MaxUploadSize = 5 << 20
	}
	if c.ImageMaxWidth == 0 {
		c.ImageMaxWidth = 1600
	}
	if c.DefaultPageLimit == 0 {
		c.DefaultPageLimit = 12
	}
	if c.MaxPageLimit == 0 {
		c.MaxPageLimit = 50
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// ConfigFromEnv reads the configuration from environment variables. Unset
// values keep their defaults.
func ConfigFromEnv() Config {
	jwtSecret := EnvOr("JWT_SECRET", EnvOr("NEXTAUTH_SECRET", ""))
	return Config{
		Name:              EnvOr("SITE_NAME", ""),
		URL:               EnvOr("SITE_URL", ""),
		Description:       EnvOr("SITE_DESCRIPTION", ""),
		Addr:              EnvOr("LILAC_ADDR", ""),
		Backend:           EnvOr("LILAC_BACKEND", ""),
		ImageBackend:      EnvOr("LILAC_IMAGE_BACKEND", ""),
		ContentDir:        EnvOr("LILAC_CONTENT_DIR", ""),
		BackupDir:         EnvOr("LILAC_BACKUP_DIR", ""),
		ImageDir:          EnvOr("LILAC_IMAGE_DIR", ""),
		DatabasePath:      EnvOr("LILAC_DATABASE_PATH", ""),
		MongoURI:          EnvOr("MONGODB_URI", ""),
		MongoDatabase:     EnvOr("MONGODB_DATABASE", ""),
		S3Bucket:          EnvOr("S3_BUCKET", ""),
		S3Region:          EnvOr("S3_REGION", ""),
		S3Endpoint:        EnvOr("S3_ENDPOINT", ""),
		S3AccessKeyID:     EnvOr("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: EnvOr("S3_SECRET_ACCESS_KEY", ""),
		AdminUsername:     EnvOr("ADMIN_USERNAME", ""),
		AdminPasswordHash: EnvOr("ADMIN_PASSWORD_HASH", ""),
		JWTSecret:         jwtSecret,
		CookieSecure:      envBool("COOKIE_SECURE"),
		LogLevel:          EnvOr("LOG_LEVEL", ""),
	}
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(EnvOr(key, "false")))
	return err == nil && v
}

// Option configures additional App behavior.
type Option func(*App)

// WithRepository uses repo instead of opening the configured backend.
func WithRepository(repo storage.Repository) Option {
	return func(a *App) {
		a.Posts = repo
	}
}

// WithImageStore uses store instead of opening the configured image backend.
func WithImageStore(store storage.ImageStore) Option {
	return func(a *App) {
		a.Images = store
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}
