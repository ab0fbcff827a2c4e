package config

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel  string `env:"EXPOSURE_LOG_LEVEL" env-default:"warn" yaml:"logLevel"`
	OutputDir string `env:"EXPOSURE_OUTPUT_DIR" env-default:"." yaml:"outputDir"`

	// DNSResolver is host:port. Empty means the first nameserver of /etc/resolv.conf.
	DNSResolver  string        `env:"EXPOSURE_DNS_RESOLVER" yaml:"dnsResolver"`
	WhoisTimeout time.Duration `env:"EXPOSURE_WHOIS_TIMEOUT" env-default:"30s" yaml:"whoisTimeout"`
	HTTPTimeout  time.Duration `env:"EXPOSURE_HTTP_TIMEOUT" env-default:"60s" yaml:"httpTimeout"`
	CrtShURL     string        `env:"EXPOSURE_CRTSH_URL" env-default:"https://crt.sh/" yaml:"crtshURL"`
	// RDAPServer pins every RDAP query to one base URL instead of the IANA bootstrap.
	RDAPServer string `env:"EXPOSURE_RDAP_SERVER" yaml:"rdapServer"`
	ASNLookup  bool   `env:"EXPOSURE_ASN_LOOKUP" env-default:"true" yaml:"asnLookup"`

	Redis struct {
		// Addr enables the report archive when set.
		Addr string `env:"EXPOSURE_REDIS_ADDR" yaml:"addr"`
		DB   int    `env:"EXPOSURE_REDIS_DB" env-default:"0" yaml:"db"`
	} `yaml:"redis"`

	Schedule string `env:"EXPOSURE_SCHEDULE" env-default:"0 2 * * *" yaml:"schedule"`
}

// LoadConfig reads the YAML file at path when given, otherwise the environment.
// Environment variables override file values either way.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, errors.Wrap(err, "read config")
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, errors.Wrap(err, "read env")
	}

	if cfg.WhoisTimeout <= 0 {
		return nil, errors.Errorf("whois timeout must be positive, got %s", cfg.WhoisTimeout)
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, errors.Errorf("http timeout must be positive, got %s", cfg.HTTPTimeout)
	}
	return &cfg, nil
}

func (c *Config) ArchiveEnabled() bool {
	return c.Redis.Addr != ""
}
