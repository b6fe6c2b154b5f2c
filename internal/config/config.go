package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr         string        `yaml:"addr"`
	APITimeout   time.Duration `yaml:"timeout"`
	DatabasePath string        `yaml:"database_path"`
	LogLevel     string        `yaml:"log_level"`
	Remote       RemoteConfig  `yaml:"remote"`
	Gate         GateConfig    `yaml:"gate"`
	DevAPI       DevAPIConfig  `yaml:"dev_api"`
}

// RemoteConfig points the admin client at the contacts backend.
type RemoteConfig struct {
	BaseURL string `yaml:"base_url"`
	// Timeout is applied per request only when > 0.
	Timeout time.Duration `yaml:"timeout"`
	// ExcerptLimit caps how much of an unparseable body is quoted in errors.
	ExcerptLimit int `yaml:"excerpt_limit"`
}

// GateConfig lists the path prefixes that need an admin session cookie.
type GateConfig struct {
	Prefixes   []string `yaml:"prefixes"`
	LoginPath  string   `yaml:"login_path"`
	CookieName string   `yaml:"cookie_name"`
}

// DevAPIConfig drives the local stand-in for the contacts backend.
type DevAPIConfig struct {
	Addr          string        `yaml:"addr"`
	DatabasePath  string        `yaml:"database_path"`
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenDuration time.Duration `yaml:"token_duration"`
	Envelope      string        `yaml:"envelope"`
	AdminName     string        `yaml:"admin_name"`
	AdminEmail    string        `yaml:"admin_email"`
	AdminPassword string        `yaml:"admin_password"`
}

const DefaultExcerptLimit = 300

func LoadConfig(path string) (*Config, error) {
	apiTimeout := 15 * time.Second
	tokenDuration := 2 * time.Hour

	cfg := &Config{
		Addr:         getEnv("CONTACTDESK_ADDR", ":8080"),
		APITimeout:   apiTimeout,
		DatabasePath: getEnv("CONTACTDESK_DATABASE_PATH", "contactdesk.db"),
		LogLevel:     getEnv("LOG_LEVEL", "INFO"),
		Remote: RemoteConfig{
			BaseURL:      getEnv("CONTACTDESK_API_URL", "http://localhost:8000/api"),
			ExcerptLimit: DefaultExcerptLimit,
		},
		Gate: GateConfig{
			Prefixes:   splitList(getEnv("CONTACTDESK_GATED_PREFIXES", "/admin")),
			LoginPath:  getEnv("CONTACTDESK_LOGIN_PATH", "/login"),
			CookieName: "admin-token",
		},
		DevAPI: DevAPIConfig{
			Addr:          getEnv("CONTACTDESK_DEV_API_ADDR", ":8000"),
			DatabasePath:  getEnv("CONTACTDESK_DEV_API_DATABASE_PATH", "contacts-api.db"),
			JWTSecret:     getEnv("CONTACTDESK_DEV_API_JWT_SECRET", "supersecretkey"),
			TokenDuration: tokenDuration,
			Envelope:      getEnv("CONTACTDESK_DEV_API_ENVELOPE", "paginated"),
			AdminName:     "Site Admin",
			AdminEmail:    getEnv("CONTACTDESK_DEV_API_ADMIN_EMAIL", "admin@example.com"),
			AdminPassword: getEnv("CONTACTDESK_DEV_API_ADMIN_PASSWORD", "password"),
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.Remote.ExcerptLimit <= 0 {
		cfg.Remote.ExcerptLimit = DefaultExcerptLimit
	}
	if cfg.Gate.CookieName == "" {
		cfg.Gate.CookieName = "admin-token"
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

const insecureSecret = "supersecretkey"

// Validate checks the settings the binaries cannot run without. The default
// dev API secret is only accepted when CONTACTDESK_ENV=development.
func (c *Config) Validate() error {
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	u, err := url.ParseRequestURI(c.Remote.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid remote.base_url %q", c.Remote.BaseURL)
	}

	if c.Gate.LoginPath == "" {
		return fmt.Errorf("gate.login_path is required")
	}
	for _, p := range c.Gate.Prefixes {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("gate prefix %q must start with /", p)
		}
		if strings.HasPrefix(c.Gate.LoginPath, p) {
			return fmt.Errorf("gate.login_path %q is under gated prefix %q", c.Gate.LoginPath, p)
		}
	}

	if c.DevAPI.JWTSecret == "" {
		return fmt.Errorf("dev_api.jwt_secret is required")
	}
	if c.DevAPI.JWTSecret == insecureSecret && os.Getenv("CONTACTDESK_ENV") != "development" {
		return fmt.Errorf("dev_api.jwt_secret uses the insecure default; set CONTACTDESK_DEV_API_JWT_SECRET or CONTACTDESK_ENV=development")
	}

	switch c.DevAPI.Envelope {
	case "paginated", "flat", "bare":
	default:
		return fmt.Errorf("dev_api.envelope must be paginated, flat or bare, got %q", c.DevAPI.Envelope)
	}
	return nil
}
