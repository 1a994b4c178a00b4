package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/errkind"
)

// EnvPrefix prefixes every environment override. The key "server.addr"
// is overridden by SSPI_SERVER_ADDR.
const EnvPrefix = "SSPI_"

// Page cache backends.
const (
	PageCacheFilesystem = "filesystem"
	PageCacheMinio      = "minio"
	PageCacheNone       = "none"
)

// Settings is the typed view of the configuration.
type Settings struct {
	Server     ServerSettings
	Storage    StorageSettings
	Metadata   MetadataSettings
	Auth       AuthSettings
	Log        LogSettings
	Collectors map[string]CollectorSettings
	PageCache  PageCacheSettings
	Minio      MinioSettings
	Redis      RedisSettings
	Worker     WorkerSettings
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Addr string
}

// StorageSettings locates the database.
type StorageSettings struct {
	DataDir string
}

// MetadataSettings locates metadata files. An empty Dir uses the embedded
// defaults.
type MetadataSettings struct {
	Dir   string
	Watch bool
}

// AuthSettings configures bearer tokens.
type AuthSettings struct {
	JWTSigningKey string
	JWTIssuer     string
	TokenTTL      time.Duration
	LoginURL      string
	PublicReads   bool
}

// LogSettings configures the logger. An empty File logs to stderr only.
type LogSettings struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// CollectorSettings overrides one organization's HTTP client.
type CollectorSettings struct {
	BaseURL  string
	MinDelay time.Duration
}

// PageCacheSettings selects where scraped pages are kept.
type PageCacheSettings struct {
	Backend string
	Dir     string
	MaxAge  time.Duration
}

// MinioSettings addresses the object store page cache.
type MinioSettings struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// RedisSettings addresses the job queue.
type RedisSettings struct {
	Addr     string
	Password string
	DB       int
}

// WorkerSettings configures rebuild workers.
type WorkerSettings struct {
	Concurrency int
}

// Collector returns the settings of org, keyed by its lower-case code.
func (s *Settings) Collector(org string) CollectorSettings {
	return s.Collectors[strings.ToLower(org)]
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() *Settings {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	root := filepath.Join(home, ".sspi")
	return &Settings{
		Server:     ServerSettings{Addr: "127.0.0.1:8080"},
		Storage:    StorageSettings{DataDir: filepath.Join(root, "data")},
		Auth:       AuthSettings{JWTIssuer: "sspi", TokenTTL: 24 * time.Hour, LoginURL: "/login", PublicReads: true},
		Log:        LogSettings{Level: "info", MaxSizeMB: 50, MaxBackups: 3},
		Collectors: map[string]CollectorSettings{},
		PageCache:  PageCacheSettings{Backend: PageCacheFilesystem, Dir: filepath.Join(root, "pages")},
		Minio:      MinioSettings{Bucket: "sspi-pages", Region: "us-east-1"},
		Redis:      RedisSettings{Addr: "127.0.0.1:6379"},
		Worker:     WorkerSettings{Concurrency: 2},
	}
}

// LoadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errkind.Configuration.Wrap(fmt.Errorf("loading %s: %w", path, err))
	}
	return nil
}

// LoadSettings resolves every key from the environment, then store, then
// the defaults. orgs lists the organization codes whose collector keys are
// read.
func LoadSettings(store driven.ConfigStore, orgs []string) (*Settings, error) {
	s := DefaultSettings()
	r := resolver{store: store}

	s.Server.Addr = r.str("server.addr", s.Server.Addr)
	s.Storage.DataDir = r.str("storage.data_dir", s.Storage.DataDir)
	s.Metadata.Dir = r.str("metadata.dir", s.Metadata.Dir)
	s.Metadata.Watch = r.boolean("metadata.watch", s.Metadata.Watch)

	s.Auth.JWTSigningKey = r.str("auth.jwt_signing_key", s.Auth.JWTSigningKey)
	s.Auth.JWTIssuer = r.str("auth.jwt_issuer", s.Auth.JWTIssuer)
	s.Auth.TokenTTL = r.duration("auth.token_ttl_minutes", time.Minute, s.Auth.TokenTTL)
	s.Auth.LoginURL = r.str("auth.login_url", s.Auth.LoginURL)
	s.Auth.PublicReads = r.boolean("auth.public_reads", s.Auth.PublicReads)

	s.Log.Level = r.str("log.level", s.Log.Level)
	s.Log.File = r.str("log.file", s.Log.File)
	s.Log.MaxSizeMB = r.integer("log.max_size_mb", s.Log.MaxSizeMB)
	s.Log.MaxBackups = r.integer("log.max_backups", s.Log.MaxBackups)

	for _, org := range orgs {
		key := "collectors." + strings.ToLower(org)
		c := CollectorSettings{
			BaseURL:  r.str(key+".base_url", ""),
			MinDelay: r.duration(key+".min_delay_ms", time.Millisecond, 0),
		}
		if c != (CollectorSettings{}) {
			s.Collectors[strings.ToLower(org)] = c
		}
	}

	s.PageCache.Backend = r.str("pagecache.backend", s.PageCache.Backend)
	s.PageCache.Dir = r.str("pagecache.dir", s.PageCache.Dir)
	s.PageCache.MaxAge = r.duration("pagecache.max_age_hours", time.Hour, s.PageCache.MaxAge)

	s.Minio.Endpoint = r.str("minio.endpoint", s.Minio.Endpoint)
	s.Minio.AccessKey = r.str("minio.access_key", s.Minio.AccessKey)
	s.Minio.SecretKey = r.str("minio.secret_key", s.Minio.SecretKey)
	s.Minio.Bucket = r.str("minio.bucket", s.Minio.Bucket)
	s.Minio.Region = r.str("minio.region", s.Minio.Region)
	s.Minio.UseSSL = r.boolean("minio.use_ssl", s.Minio.UseSSL)

	s.Redis.Addr = r.str("redis.addr", s.Redis.Addr)
	s.Redis.Password = r.str("redis.password", s.Redis.Password)
	s.Redis.DB = r.integer("redis.db", s.Redis.DB)
	s.Worker.Concurrency = r.integer("worker.concurrency", s.Worker.Concurrency)

	if r.err != nil {
		return nil, r.err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate rejects settings the engine cannot start with.
func (s *Settings) Validate() error {
	switch s.PageCache.Backend {
	case PageCacheFilesystem, PageCacheNone:
	case PageCacheMinio:
		if s.Minio.Endpoint == "" || s.Minio.Bucket == "" {
			return errkind.Configuration.New("pagecache.backend is minio but minio.endpoint or minio.bucket is empty")
		}
	default:
		return errkind.Configuration.New("unknown pagecache.backend %q", s.PageCache.Backend)
	}
	switch s.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errkind.Configuration.New("unknown log.level %q", s.Log.Level)
	}
	if s.Worker.Concurrency < 1 {
		return errkind.Configuration.New("worker.concurrency must be positive, got %d", s.Worker.Concurrency)
	}
	return nil
}

// EnvName returns the environment variable overriding key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// resolver reads one key at a time and keeps the first parse error.
type resolver struct {
	store driven.ConfigStore
	err   error
}

func (r *resolver) raw(key string) (any, bool) {
	if v, ok := os.LookupEnv(EnvName(key)); ok {
		return v, true
	}
	if r.store == nil {
		return nil, false
	}
	return r.store.Get(key)
}

func (r *resolver) str(key, def string) string {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (r *resolver) integer(key string, def int) int {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		if n == float64(int(n)) {
			return int(n)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	r.fail(key, v, "an integer")
	return def
}

func (r *resolver) boolean(key string, def bool) bool {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed
		}
	}
	r.fail(key, v, "a boolean")
	return def
}

func (r *resolver) duration(key string, unit, def time.Duration) time.Duration {
	if _, ok := r.raw(key); !ok {
		return def
	}
	return time.Duration(r.integer(key, 0)) * unit
}

func (r *resolver) fail(key string, v any, want string) {
	if r.err == nil {
		r.err = errkind.Configuration.New("%s=%v is not %s", key, v, want)
	}
}
