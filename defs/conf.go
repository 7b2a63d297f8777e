package defs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	CaptureFFmpeg = "ffmpeg"
	CaptureNative = "native"
)

type PortalConf struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
	Origin string `mapstructure:"origin" yaml:"origin"`

	// token endpoint
	ApiUrl    string `mapstructure:"api_url" yaml:"api_url"`
	AuthToken string `mapstructure:"auth_token" yaml:"auth_token"`

	// livekit
	Ws     string `mapstructure:"ws" yaml:"ws"`
	Key    string `mapstructure:"key" yaml:"key"`
	Secret string `mapstructure:"secret" yaml:"secret"`

	Catalog   string `mapstructure:"catalog" yaml:"catalog"`
	RecordDir string `mapstructure:"record_dir" yaml:"record_dir"`

	Capture string `mapstructure:"capture" yaml:"capture"`
	FFmpeg  string `mapstructure:"ffmpeg" yaml:"ffmpeg"`

	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	ViewLifetime   time.Duration `mapstructure:"view_lifetime" yaml:"view_lifetime"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// env names the original front-end build used, kept as aliases
var legacyEnv = map[string]string{
	"api_url":    "VITE_API_URL",
	"auth_token": "VITE_AUTH_TOKEN",
	"ws":         "VITE_LIVEKIT_WS_URL",
}

// SetDefaults registers the defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("origin", "http://localhost:8080")
	v.SetDefault("capture", CaptureFFmpeg)
	v.SetDefault("ffmpeg", "ffmpeg")
	v.SetDefault("max_retries", 3)
	v.SetDefault("connect_timeout", "10s")
	v.SetDefault("view_lifetime", "2h")
	v.SetDefault("log_level", "info")

	// AutomaticEnv only reaches keys viper already knows about
	for _, key := range []string{"api_url", "auth_token", "ws", "key", "secret", "catalog", "record_dir"} {
		v.SetDefault(key, "")
	}
}

// NewViper returns a viper instance with defaults and env bindings set up.
// Env vars are VIDPORTAL_<KEY>, plus the VITE_* names for the token endpoint and ws url.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("vidportal")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		_ = v.BindEnv(key, "VIDPORTAL_"+strings.ToUpper(key), legacy)
	}
	SetDefaults(v)
	return v
}

// LoadConf reads path (optional) on top of defaults and environment.
func LoadConf(v *viper.Viper, path string) (*PortalConf, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var c PortalConf
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *PortalConf) Validate() error {
	if c.Capture != CaptureFFmpeg && c.Capture != CaptureNative {
		return fmt.Errorf("unknown capture backend %q", c.Capture)
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = 1
	}
	if c.ConnectTimeout <= 0 {
		return errors.New("connect_timeout must be positive")
	}
	if c.ViewLifetime <= 0 {
		return errors.New("view_lifetime must be positive")
	}
	return nil
}

// CanIssueTokens tells whether either the token endpoint or local signing is configured.
func (c *PortalConf) CanIssueTokens() bool {
	return c.ApiUrl != "" || (c.Key != "" && c.Secret != "")
}
