package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/tenantcrud/pkg/logging"
)

const Production = "production"

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	CacheMemory = "memory"
	CacheRedis  = "redis"

	InvalidationSync  = "sync"
	InvalidationAsync = "async"
)

var defaultEnvFiles = []string{".env", ".env.local"}

var singleton = sync.OnceValue(func() *Configuration {
	c, err := New(defaultEnvFiles...)
	if err != nil {
		panic(err)
	}
	return c
})

// LoadEnv loads the env files that exist in the working directory. When none
// does, the directory holding go.mod is tried instead so that tests running
// inside a package pick up the repository's files.
func LoadEnv(envFiles []string) (int, error) {
	existing := existingFiles("", envFiles)
	if len(existing) == 0 {
		if root, ok := moduleRoot(); ok {
			existing = existingFiles(root, envFiles)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

func existingFiles(dir string, files []string) []string {
	out := make([]string, 0, len(files))
	for _, file := range files {
		path := file
		if dir != "" && !filepath.IsAbs(file) {
			path = filepath.Join(dir, file)
		}
		if fs.FileExists(path) {
			out = append(out, path)
		}
	}
	return out
}

func moduleRoot() (string, bool) {
	wd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for dir := wd; ; {
		if fs.FileExists(filepath.Join(dir, "go.mod")) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"tenantcrud"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type CacheOptions struct {
	Backend  string        `env:"CACHE_BACKEND" envDefault:"memory"` // memory or redis
	TTL      time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	RedisURL string        `env:"REDIS_URL" envDefault:"localhost:6379"`
}

func (o *CacheOptions) Validate() error {
	o.Backend = strings.ToLower(strings.TrimSpace(o.Backend))
	switch o.Backend {
	case CacheMemory:
	case CacheRedis:
		if strings.TrimSpace(o.RedisURL) == "" {
			return fmt.Errorf("REDIS_URL is required when CACHE_BACKEND is 'redis'")
		}
	default:
		return fmt.Errorf("invalid CACHE_BACKEND=%q (expected memory|redis)", o.Backend)
	}
	if o.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", o.TTL)
	}
	return nil
}

type InvalidationOptions struct {
	Mode        string        `env:"INVALIDATION_MODE" envDefault:"sync"` // sync or async
	QueueSize   int           `env:"INVALIDATION_QUEUE_SIZE" envDefault:"1024"`
	MaxAttempts int           `env:"INVALIDATION_MAX_ATTEMPTS" envDefault:"8"`
	RetryBase   time.Duration `env:"INVALIDATION_RETRY_BASE" envDefault:"100ms"`
	RetryMax    time.Duration `env:"INVALIDATION_RETRY_MAX" envDefault:"10s"`
}

func (o *InvalidationOptions) Validate() error {
	o.Mode = strings.ToLower(strings.TrimSpace(o.Mode))
	switch o.Mode {
	case InvalidationSync, InvalidationAsync:
	default:
		return fmt.Errorf("invalid INVALIDATION_MODE=%q (expected sync|async)", o.Mode)
	}
	if o.QueueSize <= 0 {
		return fmt.Errorf("INVALIDATION_QUEUE_SIZE must be positive, got %d", o.QueueSize)
	}
	if o.MaxAttempts <= 0 {
		return fmt.Errorf("INVALIDATION_MAX_ATTEMPTS must be positive, got %d", o.MaxAttempts)
	}
	return nil
}

type AuthzOptions struct {
	ModelPath      string `env:"AUTHZ_MODEL_PATH" envDefault:"config/access/model.conf"`
	PolicyPath     string `env:"AUTHZ_POLICY_PATH" envDefault:"config/access/policy.csv"`
	FlagConfigPath string `env:"AUTHZ_FLAG_CONFIG" envDefault:"config/access/authz_flags.yaml"`
	Mode           string `env:"AUTHZ_MODE" envDefault:"shadow"`
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"tenantcrud"`
}

type Configuration struct {
	Database      DatabaseOptions
	Cache         CacheOptions
	Invalidation  InvalidationOptions
	Authz         AuthzOptions
	OpenTelemetry OpenTelemetryOptions

	StorageProvider string `env:"STORAGE_PROVIDER" envDefault:"postgres"` // postgres or memory
	// Scope prefixes every collection and therefore every cache key, so that
	// several deployments can share one database and cache.
	Scope            string `env:"SCOPE" envDefault:""`
	PageSize         int    `env:"PAGE_SIZE" envDefault:"10"`
	MaxPageSize      int    `env:"MAX_PAGE_SIZE" envDefault:"100"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string `env:"LOG_PATH" envDefault:""`

	logFile *os.File
	logger  *logrus.Logger
}

// New loads envFiles (missing files are skipped) and parses the environment.
func New(envFiles ...string) (*Configuration, error) {
	c := &Configuration{}
	if err := c.load(envFiles); err != nil {
		c.Unload()
		return nil, err
	}
	return c, nil
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	return logging.ParseLevel(c.LogLevel)
}

// CollectionName applies the configured scope to a collection name.
func (c *Configuration) CollectionName(name string) string {
	if c.Scope == "" {
		return name
	}
	return c.Scope + "-" + name
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 && len(envFiles) > 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		return err
	}

	if c.LogPath != "" {
		f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
		if err != nil {
			return err
		}
		c.logFile = f
		c.logger = logger
	} else {
		c.logger = logging.ConsoleLogger(c.LogrusLogLevel())
	}

	c.Database.Opts = c.Database.ConnectionString()
	return nil
}

func (c *Configuration) validate() error {
	c.StorageProvider = strings.ToLower(strings.TrimSpace(c.StorageProvider))
	switch c.StorageProvider {
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("invalid STORAGE_PROVIDER=%q (expected postgres|memory)", c.StorageProvider)
	}

	c.Scope = strings.TrimSpace(c.Scope)
	if strings.ContainsAny(c.Scope, ": *?[]") {
		return fmt.Errorf("invalid SCOPE=%q: must not contain ':', spaces or glob characters", c.Scope)
	}

	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.MaxPageSize < c.PageSize {
		return fmt.Errorf("MAX_PAGE_SIZE (%d) must not be below PAGE_SIZE (%d)", c.MaxPageSize, c.PageSize)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache configuration error: %w", err)
	}
	if err := c.Invalidation.Validate(); err != nil {
		return fmt.Errorf("invalidation configuration error: %w", err)
	}
	return nil
}

// Unload closes the log file, if any.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
