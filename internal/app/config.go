package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. ROOMCHAT_SERVER_URL.
const EnvPrefix = "ROOMCHAT"

// Config keys shared by flags, env vars and config files.
const (
	KeyServerURL           = "server_url"
	KeyUploadURL           = "upload_url"
	KeyUser                = "user"
	KeyRoom                = "room"
	KeyLogFile             = "log_file"
	KeyLogLevel            = "log_level"
	KeyStripMarkup         = "strip_markup"
	KeyAlertUploadFailures = "alert_upload_failures"
	KeyBrowseDir           = "browse_dir"
)

const (
	DefaultServerURL = "ws://localhost:5000/socket"
	DefaultRoom      = "common"
	DefaultLogLevel  = "info"
	uploadPath       = "/upload"
)

// ClientConfig defines the parameters the TUI client needs.
type ClientConfig struct {
	ServerURL           string `mapstructure:"server_url"`
	UploadURL           string `mapstructure:"upload_url"`
	Username            string `mapstructure:"user"`
	Room                string `mapstructure:"room"`
	LogFile             string `mapstructure:"log_file"`
	LogLevel            string `mapstructure:"log_level"`
	StripMarkup         bool   `mapstructure:"strip_markup"`
	AlertUploadFailures bool   `mapstructure:"alert_upload_failures"`
	BrowseDir           string `mapstructure:"browse_dir"`
}

// SetDefaults registers the built-in defaults and env lookup on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyServerURL, DefaultServerURL)
	v.SetDefault(KeyUploadURL, "")
	v.SetDefault(KeyUser, "")
	v.SetDefault(KeyRoom, DefaultRoom)
	v.SetDefault(KeyLogFile, DefaultLogPath())
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyStripMarkup, false)
	v.SetDefault(KeyAlertUploadFailures, false)
	v.SetDefault(KeyBrowseDir, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// LoadClientConfig reads the optional config file and unmarshals every layer
// (flags over env over file over defaults) into a ClientConfig. An explicit
// configPath must exist; the default location may be absent.
func LoadClientConfig(v *viper.Viper, configPath string) (ClientConfig, error) {
	var cfg ClientConfig

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(DefaultConfigDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return cfg, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Username = strings.TrimSpace(cfg.Username)
	if cfg.Username == "" {
		cfg.Username = defaultUsername()
	}
	return cfg, nil
}

// Validate reports the first setting the client cannot start with.
func (cfg ClientConfig) Validate() error {
	parsed, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return fmt.Errorf("server url: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return fmt.Errorf("server url must use ws or wss, got %q", cfg.ServerURL)
	}
	if cfg.UploadURL != "" {
		upload, err := url.Parse(cfg.UploadURL)
		if err != nil {
			return fmt.Errorf("upload url: %w", err)
		}
		if upload.Scheme != "http" && upload.Scheme != "https" {
			return fmt.Errorf("upload url must use http or https, got %q", cfg.UploadURL)
		}
	}
	if strings.TrimSpace(cfg.Username) == "" {
		return errors.New("username is required")
	}
	if cfg.Room == "" {
		return errors.New("room is required")
	}
	return nil
}

// ResolvedUploadURL is the configured upload URL, or one derived from the
// socket URL when none is set.
func (cfg ClientConfig) ResolvedUploadURL() (string, error) {
	if cfg.UploadURL != "" {
		return cfg.UploadURL, nil
	}
	return UploadURLFromSocket(cfg.ServerURL)
}

// HTTPBaseFromSocket maps ws://host/path to http://host (wss to https).
func HTTPBaseFromSocket(wsURL string) (string, error) {
	parsed, err := url.Parse(wsURL)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "ws":
		parsed.Scheme = "http"
	case "wss":
		parsed.Scheme = "https"
	default:
		return "", fmt.Errorf("unsupported scheme %s", parsed.Scheme)
	}
	parsed.Path = ""
	parsed.RawPath = ""
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return strings.TrimRight(parsed.String(), "/"), nil
}

// UploadURLFromSocket derives the upload endpoint served next to the socket.
func UploadURLFromSocket(wsURL string) (string, error) {
	base, err := HTTPBaseFromSocket(wsURL)
	if err != nil {
		return "", err
	}
	return base + uploadPath, nil
}

// DefaultLogPath returns a per-user state path for the client log file.
func DefaultLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "roomchat", "roomchat.log")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			return filepath.Join(appData, "Roomchat", "roomchat.log")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Logs", "Roomchat", "roomchat.log")
		}
		return filepath.Join(home, ".local", "state", "roomchat", "roomchat.log")
	}
	return filepath.Join(".", ".roomchat", "roomchat.log")
}

// DefaultConfigDir is where config.{yaml,json,toml} is looked up.
func DefaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "roomchat")
	}
	return filepath.Join(".", ".roomchat")
}

// init user
func defaultUsername() string {
	if user := os.Getenv("ROOMCHAT_USER"); user != "" {
		return user
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "anon"
}
