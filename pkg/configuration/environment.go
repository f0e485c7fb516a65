package configuration

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/flockdesk/pkg/logging"
)

const Production = "production"

// Detail fallback policies. Legacy keeps the placeholder for cell, unit and
// assembly detail views and the error toast for member and family.
const (
	FallbackLegacy      = "legacy"
	FallbackPlaceholder = "placeholder"
	FallbackToast       = "toast"
)

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

// LoadEnv loads the env files found in the working directory, or, when none
// is there, in the nearest parent directory holding a go.mod.
func LoadEnv(envFiles []string) (int, error) {
	existingFiles := existing(envFiles, "")
	if len(existingFiles) == 0 {
		if root := moduleRoot(); root != "" {
			existingFiles = existing(envFiles, root)
		}
	}
	if len(existingFiles) == 0 {
		return 0, nil
	}
	return len(existingFiles), godotenv.Load(existingFiles...)
}

func existing(envFiles []string, dir string) []string {
	out := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		path := file
		if dir != "" {
			path = filepath.Join(dir, file)
		}
		if fs.FileExists(path) {
			out = append(out, path)
		}
	}
	return out
}

func moduleRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for dir := wd; ; {
		if fs.FileExists(filepath.Join(dir, "go.mod")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

type ServerOptions struct {
	BaseURL           string `env:"DASHBOARD_BASE_URL" envDefault:"http://localhost:8000"`
	SessionCookieName string `env:"DASHBOARD_SESSION_COOKIE" envDefault:"sessionid"`
	SessionID         string `env:"DASHBOARD_SESSION_ID"`
	CSRFCookieName    string `env:"DASHBOARD_CSRF_COOKIE" envDefault:"csrftoken"`
	CSRFToken         string `env:"DASHBOARD_CSRF_TOKEN"`
	// Zero means no client-side timeout; the transport's own behaviour applies.
	RequestTimeout time.Duration `env:"DASHBOARD_REQUEST_TIMEOUT" envDefault:"0"`
}

type UIOptions struct {
	DetailFallback string        `env:"DASHBOARD_DETAIL_FALLBACK" envDefault:"legacy"`
	ReloadDelay    time.Duration `env:"DASHBOARD_RELOAD_DELAY" envDefault:"1s"`
	ToastDelay     time.Duration `env:"DASHBOARD_TOAST_DELAY" envDefault:"5s"`
}

type ReplayOptions struct {
	Rate string `env:"REPLAY_RATE" envDefault:"20-S"`
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"flockdesk"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
	Address string `env:"PROMETHEUS_METRICS_ADDR" envDefault:"localhost:9464"`
}

type Configuration struct {
	Server        ServerOptions
	UI            UIOptions
	Replay        ReplayOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions

	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string `env:"LOG_PATH"`
	// Header carrying a fresh uuid on every request to the dashboard server.
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

// Load builds a fresh configuration from the environment and the given env
// files. Unlike Use it never panics and is not cached.
func Load(envFiles ...string) (*Configuration, error) {
	c := &Configuration{}
	if err := c.load(envFiles); err != nil {
		c.Unload()
		return nil, err
	}
	return c, nil
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 && len(envFiles) > 0 && c.GoAppEnvironment != Production {
		wd, _ := os.Getwd()
		for _, file := range envFiles {
			log.Printf("no env file at %s", filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateUI(); err != nil {
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
	return nil
}

func (c *Configuration) validateServer() error {
	raw := strings.TrimSpace(c.Server.BaseURL)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid DASHBOARD_BASE_URL=%q (expected absolute http(s) URL)", c.Server.BaseURL)
	}
	c.Server.BaseURL = strings.TrimRight(raw, "/")
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("DASHBOARD_REQUEST_TIMEOUT must be non-negative, got %s", c.Server.RequestTimeout)
	}
	return nil
}

func (c *Configuration) validateUI() error {
	mode := strings.ToLower(strings.TrimSpace(c.UI.DetailFallback))
	if mode == "" {
		mode = FallbackLegacy
	}
	switch mode {
	case FallbackLegacy, FallbackPlaceholder, FallbackToast:
	default:
		return fmt.Errorf("invalid DASHBOARD_DETAIL_FALLBACK=%q (expected legacy|placeholder|toast)", c.UI.DetailFallback)
	}
	c.UI.DetailFallback = mode

	if c.UI.ReloadDelay < 0 {
		return fmt.Errorf("DASHBOARD_RELOAD_DELAY must be non-negative, got %s", c.UI.ReloadDelay)
	}
	if c.UI.ToastDelay <= 0 {
		return fmt.Errorf("DASHBOARD_TOAST_DELAY must be positive, got %s", c.UI.ToastDelay)
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
