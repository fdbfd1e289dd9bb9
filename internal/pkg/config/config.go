package config

import (
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/ardanlabs/conf"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"busoptimizer/backend/internal/pkg/logger"
)

const (
	DefaultTimezone = "Asia/Kuala_Lumpur"
	DefaultPath     = "config.yaml"

	// Namespace prefixes every environment override, e.g. BUSOPT_AUTH_JWT_KEY.
	Namespace = "BUSOPT"
)

type Config struct {
	Server struct {
		Host            string        `yaml:"host"`
		Port            string        `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	} `yaml:"server"`

	DB struct {
		User       string `yaml:"db_username"`
		Password   string `yaml:"db_password" conf:"noprint"`
		Host       string `yaml:"db_host"`
		Port       string `yaml:"port"`
		Name       string `yaml:"db_name"`
		DisableTLS bool   `yaml:"disable_tls"`
		Debug      bool   `yaml:"debug"`
	} `yaml:"db"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password" conf:"noprint"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Cache struct {
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"cache"`

	Auth struct {
		JWTKey   string        `yaml:"jwt_key" conf:"noprint"`
		TokenTTL time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`

	// APIKeys holds the device keys as "LABEL:KEY,LABEL2:KEY2". A KEY may be
	// a bcrypt hash.
	APIKeys  string `yaml:"api_keys" conf:"noprint"`
	Timezone string `yaml:"timezone"`

	Archive struct {
		Dir      string `yaml:"dir"`
		S3Bucket string `yaml:"s3_bucket"`
		S3Prefix string `yaml:"s3_prefix"`
	} `yaml:"archive"`

	Log logger.Config `yaml:"log"`
}

// Default returns a config with every optional value filled in.
func Default() Config {
	var c Config
	c.Server.Host = "0.0.0.0"
	c.Server.Port = "8000"
	c.Server.ReadTimeout = 30 * time.Second
	c.Server.WriteTimeout = 60 * time.Second
	c.Server.ShutdownTimeout = 20 * time.Second
	c.Server.MaxUploadBytes = 32 << 20
	c.DB.Port = "5432"
	c.Redis.Addr = "localhost:6379"
	c.Cache.TTL = 30 * time.Second
	c.Auth.TokenTTL = 12 * time.Hour
	c.Timezone = DefaultTimezone
	c.Archive.Dir = "statics/uploads"
	c.Log = logger.DefaultConfig()
	return c
}

// NewConfig reads the yaml file at path over the defaults.
func NewConfig(path string) (*Config, error) {
	c := Default()

	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	if err = yaml.Unmarshal(yamlFile, &c); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}

	return &c, nil
}

// Load reads the yaml file named by BUSOPT_CONFIG (config.yaml when unset)
// and then applies environment and command line overrides. A missing
// default file is not an error.
func Load(args []string) (*Config, error) {
	path := os.Getenv(Namespace + "_CONFIG")
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	c := Default()
	cfg := &c
	if _, err := os.Stat(path); err == nil || explicit {
		if cfg, err = NewConfig(path); err != nil {
			return nil, err
		}
	}

	if err := conf.Parse(args, Namespace, cfg); err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			return nil, err
		}
		return nil, errors.Wrap(err, "parse config overrides")
	}

	return cfg, nil
}

// Usage renders the override flags and environment variables.
func Usage(cfg *Config) (string, error) {
	return conf.Usage(Namespace, cfg)
}

// String renders the config with secrets left out.
func (c *Config) String() string {
	out, err := conf.String(c)
	if err != nil {
		return err.Error()
	}
	return out
}

// Validate checks the fields the server cannot start without.
func (c *Config) Validate() error {
	if c.DB.User == "" || c.DB.Password == "" || c.DB.Host == "" || c.DB.Name == "" {
		return errors.New("missing required database configuration")
	}
	if c.Auth.JWTKey == "" {
		return errors.New("missing auth.jwt_key")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Location() (*time.Location, error) {
	name := c.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "load timezone %s", name)
	}
	return loc, nil
}

// ParseAPIKeys splits "LABEL:KEY,LABEL2:KEY2" into label -> key. Pairs
// without a colon are ignored.
func ParseAPIKeys(raw string) map[string]string {
	keys := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		label, key, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		label, key = strings.TrimSpace(label), strings.TrimSpace(key)
		if label == "" || key == "" {
			continue
		}
		keys[label] = key
	}
	return keys
}
