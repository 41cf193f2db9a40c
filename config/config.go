package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cwrk-planet/chat-gateway/internal/gateway"
	"github.com/cwrk-planet/chat-gateway/internal/pg"
	"github.com/cwrk-planet/chat-gateway/internal/security"
	"github.com/cwrk-planet/chat-gateway/pkg/logger"
)

const DefaultPath = "./config/config.yaml"

type HTTP struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

func (h *HTTP) Validate() error {
	if h.Addr == "" {
		h.Addr = ":8080"
	}
	if h.ReadTimeout <= 0 {
		h.ReadTimeout = 15 * time.Second
	}
	if h.WriteTimeout <= 0 {
		h.WriteTimeout = 30 * time.Second
	}
	if h.IdleTimeout <= 0 {
		h.IdleTimeout = 60 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
	return nil
}

type GRPC struct {
	Addr string `yaml:"addr"` // empty disables the admin endpoint
}

type Logging struct {
	Env       string `yaml:"env"`     // dev|prod
	Service   string `yaml:"service"` // chat-gateway
	Version   string `yaml:"version"`
	Backend   string `yaml:"backend"` // std|zap
	Level     string `yaml:"level"`
	AddSource bool   `yaml:"addSource"`
	Debug     bool   `yaml:"debug"`
}

func (l *Logging) Validate() error {
	if l.Service == "" {
		l.Service = "chat-gateway"
	}
	if l.Version == "" {
		l.Version = "v0.1.0"
	}
	switch l.Backend {
	case "", string(logger.BackendStd), string(logger.BackendZap):
	default:
		return fmt.Errorf("logging.backend %q: want std or zap", l.Backend)
	}
	return nil
}

func (l Logging) ToLoggerConfig() logger.Config {
	env := logger.DetectEnv()
	if l.Env != "" {
		env = logger.ParseEnv(l.Env)
	}
	lvl := logger.ParseLevel(l.Level)
	if l.Debug {
		lvl = slog.LevelDebug
	}
	return logger.Config{
		Service:   l.Service,
		Version:   l.Version,
		Env:       env,
		Level:     lvl,
		Backend:   logger.Backend(l.Backend),
		Debug:     l.Debug,
		AddSource: l.AddSource,
	}
}

type Postgres struct {
	DSN               string        `yaml:"dsn"`
	Migrate           bool          `yaml:"migrate"`
	MaxConns          int32         `yaml:"maxConns"`
	MinConns          int32         `yaml:"minConns"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
	ApplicationName   string        `yaml:"applicationName"`
}

func (p *Postgres) Validate() error {
	if p.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if p.MinConns < 0 || p.MaxConns < 0 || (p.MaxConns > 0 && p.MinConns > p.MaxConns) {
		return errors.New("postgres.minConns must be in [0..maxConns]")
	}
	if p.ApplicationName == "" {
		p.ApplicationName = "chat-gateway"
	}
	return nil
}

func (p Postgres) ToPGConfig() pg.Config {
	return pg.Config{
		DSN:               p.DSN,
		MaxConns:          p.MaxConns,
		MinConns:          p.MinConns,
		MaxConnLifetime:   p.MaxConnLifetime,
		MaxConnIdleTime:   p.MaxConnIdleTime,
		HealthCheckPeriod: p.HealthCheckPeriod,
		ApplicationName:   p.ApplicationName,
	}
}

type Redis struct {
	URL string `yaml:"url"`
}

const (
	BusMemory = "memory"
	BusRedis  = "redis"
)

type Bus struct {
	Driver        string `yaml:"driver"` // memory|redis
	ChannelPrefix string `yaml:"channelPrefix"`
	Buffer        int    `yaml:"buffer"`
}

func (b *Bus) Validate(r Redis) error {
	if b.Driver == "" {
		b.Driver = BusMemory
	}
	if b.Buffer <= 0 {
		b.Buffer = 1024
	}
	switch b.Driver {
	case BusMemory:
	case BusRedis:
		if r.URL == "" {
			return errors.New("redis.url is required for bus.driver redis")
		}
	default:
		return fmt.Errorf("bus.driver %q: want memory or redis", b.Driver)
	}
	return nil
}

type Session struct {
	CookieName   string        `yaml:"cookieName"`
	TTL          time.Duration `yaml:"ttl"`
	ReapInterval time.Duration `yaml:"reapInterval"`
	SecureCookie bool          `yaml:"secureCookie"`
	Domain       string        `yaml:"domain"`
}

func (s *Session) Validate() error {
	if s.CookieName == "" {
		s.CookieName = "sessionId"
	}
	if s.TTL <= 0 {
		s.TTL = 24 * time.Hour
	}
	if s.ReapInterval <= 0 {
		s.ReapInterval = time.Hour
	}
	if s.TTL < time.Minute {
		return errors.New("session.ttl must be >= 1m")
	}
	return nil
}

type Gateway struct {
	AuthTimeout     time.Duration `yaml:"authTimeout"`
	StoreTimeout    time.Duration `yaml:"storeTimeout"`
	BusTimeout      time.Duration `yaml:"busTimeout"`
	MaxMessageLen   int           `yaml:"maxMessageLen"`
	OpenJoin        bool          `yaml:"openJoin"`
	EventsPerSecond float64       `yaml:"eventsPerSecond"`
	EventBurst      int           `yaml:"eventBurst"`

	PingEvery  time.Duration `yaml:"pingEvery"`
	WriteWait  time.Duration `yaml:"writeWait"`
	ReadLimit  int64         `yaml:"readLimit"`
	SendBuffer int           `yaml:"sendBuffer"`
}

func (g *Gateway) Validate() error {
	if g.MaxMessageLen < 0 || g.EventsPerSecond < 0 || g.EventBurst < 0 || g.ReadLimit < 0 || g.SendBuffer < 0 {
		return errors.New("gateway limits must not be negative")
	}
	return nil
}

// ToOptions leaves zero values for gateway.New to default.
func (g Gateway) ToOptions(instanceID string) gateway.Options {
	return gateway.Options{
		AuthTimeout:     g.AuthTimeout,
		StoreTimeout:    g.StoreTimeout,
		BusTimeout:      g.BusTimeout,
		MaxMessageLen:   g.MaxMessageLen,
		OpenJoin:        g.OpenJoin,
		EventsPerSecond: g.EventsPerSecond,
		EventBurst:      g.EventBurst,
		InstanceID:      instanceID,
	}
}

type Password struct {
	MinLength  int `yaml:"minLength"`
	BcryptCost int `yaml:"bcryptCost"`
}

func (p *Password) Validate() error {
	if p.MinLength == 0 {
		p.MinLength = 6
	}
	if p.MinLength < 6 {
		return errors.New("security.password.minLength must be >= 6")
	}
	if p.BcryptCost != 0 && (p.BcryptCost < 4 || p.BcryptCost > 18) {
		return errors.New("security.password.bcryptCost must be in [4..18]")
	}
	return nil
}

func (p Password) ToPolicy() security.PasswordPolicy {
	return security.PasswordPolicy{Cost: p.BcryptCost, MinLength: p.MinLength}
}

type Security struct {
	Password Password `yaml:"password"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Bus      Bus      `yaml:"bus"`
	Session  Session  `yaml:"session"`
	Gateway  Gateway  `yaml:"gateway"`
	Security Security `yaml:"security"`
	CORS     CORS     `yaml:"cors"`
}

func (c *Config) Validate() error {
	return errors.Join(
		c.HTTP.Validate(),
		c.Logging.Validate(),
		c.Postgres.Validate(),
		c.Bus.Validate(c.Redis),
		c.Session.Validate(),
		c.Gateway.Validate(),
		c.Security.Password.Validate(),
	)
}

// LoadConfig reads CONFIG_PATH (or DefaultPath), applies environment
// overrides and validates the result.
func LoadConfig() (*Config, error) {
	path := strings.TrimSpace(os.Getenv("CONFIG_PATH"))
	if path == "" {
		path = DefaultPath
	}
	return Load(path)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("APP_ENV"); v != "" && c.Logging.Env == "" {
		c.Logging.Env = v
	}
}
