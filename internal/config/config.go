package config

import (
	stderrors "errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/langyo/React-frontback-scaffold/internal/errors"
)

const (
	// ConfigName is the base name of the optional configuration file.
	ConfigName = "pneumatic"

	// EnvPrefix prefixes environment overrides for keys without a dedicated variable.
	EnvPrefix = "PNEUMATIC"

	// DefaultPort is the default listen port.
	DefaultPort = 80

	// DefaultHost is the default listen host (all interfaces).
	DefaultHost = ""

	// DefaultDebounce is the cooldown between a change and the build it triggers.
	DefaultDebounce = 3 * time.Second

	// DefaultMaxMessageSize caps one inbound WebSocket message in bytes.
	DefaultMaxMessageSize = 1 << 20

	// DefaultClientEntry is the client UI root, relative to the project root.
	DefaultClientEntry = "src/clientEntry.tsx"

	// DefaultServerEntry is the server logic root, relative to the project root.
	DefaultServerEntry = "src/serverEntry.ts"

	// DefaultInstallTimeout bounds top-level execution of a server artifact.
	DefaultInstallTimeout = 10 * time.Second

	// DefaultDrainTimeout bounds how long a replaced instance may finish queued work.
	DefaultDrainTimeout = 2 * time.Second
)

// Mode values. Anything other than ModeDevelopment is normalized to ModeProduction.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Config is the complete dev server configuration.
type Config struct {
	// Root is the project directory that is watched and compiled.
	Root string `mapstructure:"root" json:"root,omitempty"`

	// Mode is the development/production switch for client builds.
	Mode string `mapstructure:"mode" json:"mode,omitempty"`

	// Entries names the real source files the synthetic entry shims forward to.
	Entries EntriesConfig `mapstructure:"entries" json:"entries,omitempty"`

	// Dev contains listener and watcher settings.
	Dev DevConfig `mapstructure:"dev" json:"dev,omitempty"`

	// Sandbox contains server-logic execution settings.
	Sandbox SandboxConfig `mapstructure:"sandbox" json:"sandbox,omitempty"`

	// Publish configures the optional artifact mirror.
	Publish PublishConfig `mapstructure:"publish" json:"publish,omitempty"`

	// configPath stores the path of the file the config was read from, if any.
	configPath string
}

// EntriesConfig names the client and server source roots.
type EntriesConfig struct {
	Client string `mapstructure:"client" json:"client,omitempty"`
	Server string `mapstructure:"server" json:"server,omitempty"`
}

// DevConfig contains development server settings.
type DevConfig struct {
	// Port is the port to listen on.
	Port int `mapstructure:"port" json:"port,omitempty"`

	// Host is the host to bind to. Empty binds all interfaces.
	Host string `mapstructure:"host" json:"host,omitempty"`

	// Debounce is the change cooldown before a build is triggered.
	Debounce time.Duration `mapstructure:"debounce" json:"debounce,omitempty"`

	// Proxy is an upstream URL that receives every request the dev server
	// does not handle itself.
	Proxy string `mapstructure:"proxy" json:"proxy,omitempty"`

	// Watch lists extra directories to watch besides the project root.
	Watch []string `mapstructure:"watch" json:"watch,omitempty"`

	// Ignore contains extra watcher ignore patterns.
	Ignore []string `mapstructure:"ignore" json:"ignore,omitempty"`

	// MaxMessageSize is the largest inbound WebSocket message in bytes.
	// Larger messages close the connection.
	MaxMessageSize int64 `mapstructure:"maxMessageSize" json:"maxMessageSize,omitempty"`
}

// SandboxConfig contains server-logic execution settings.
type SandboxConfig struct {
	// InstallTimeout bounds top-level execution of a new server artifact.
	InstallTimeout time.Duration `mapstructure:"installTimeout" json:"installTimeout,omitempty"`

	// DrainTimeout bounds how long a superseded instance may finish queued messages.
	DrainTimeout time.Duration `mapstructure:"drainTimeout" json:"drainTimeout,omitempty"`
}

// PublishConfig configures mirroring of successful artifacts to S3.
// Publishing is disabled when Bucket is empty.
type PublishConfig struct {
	Bucket   string `mapstructure:"bucket" json:"bucket,omitempty"`
	Prefix   string `mapstructure:"prefix" json:"prefix,omitempty"`
	Region   string `mapstructure:"region" json:"region,omitempty"`
	Endpoint string `mapstructure:"endpoint" json:"endpoint,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Mode: ModeProduction,
		Entries: EntriesConfig{
			Client: DefaultClientEntry,
			Server: DefaultServerEntry,
		},
		Dev: DevConfig{
			Port:           DefaultPort,
			Host:           DefaultHost,
			Debounce:       DefaultDebounce,
			MaxMessageSize: DefaultMaxMessageSize,
		},
		Sandbox: SandboxConfig{
			InstallTimeout: DefaultInstallTimeout,
			DrainTimeout:   DefaultDrainTimeout,
		},
	}
}

// SetDefaults registers default values with v so that environment variables
// and flags can override keys that never appear in a config file.
func SetDefaults(v *viper.Viper) {
	defaults := New()

	v.SetDefault("root", "")
	v.SetDefault("mode", defaults.Mode)
	v.SetDefault("entries.client", defaults.Entries.Client)
	v.SetDefault("entries.server", defaults.Entries.Server)
	v.SetDefault("dev.port", defaults.Dev.Port)
	v.SetDefault("dev.host", defaults.Dev.Host)
	v.SetDefault("dev.debounce", defaults.Dev.Debounce)
	v.SetDefault("dev.proxy", "")
	v.SetDefault("dev.watch", []string{})
	v.SetDefault("dev.ignore", []string{})
	v.SetDefault("dev.maxMessageSize", defaults.Dev.MaxMessageSize)
	v.SetDefault("sandbox.installTimeout", defaults.Sandbox.InstallTimeout)
	v.SetDefault("sandbox.drainTimeout", defaults.Sandbox.DrainTimeout)
	v.SetDefault("publish.bucket", "")
	v.SetDefault("publish.prefix", "")
	v.SetDefault("publish.region", "")
	v.SetDefault("publish.endpoint", "")
}

// BindEnv wires the conventional environment variables. PORT, HOST and
// NODE_ENV are honored without prefix; every other key can be overridden
// with PNEUMATIC_<SECTION>_<KEY>.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("dev.port", "PORT", EnvPrefix+"_DEV_PORT")
	_ = v.BindEnv("dev.host", "HOST", EnvPrefix+"_DEV_HOST")
	_ = v.BindEnv("mode", "NODE_ENV", EnvPrefix+"_MODE")
}

// Load reads configuration for the project in dir through v. A missing config
// file is not an error; a malformed one is.
func Load(v *viper.Viper, dir string) (*Config, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.New("E141").Wrap(err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, errors.New("E141").
			WithDetail("No project directory at " + abs)
	}

	SetDefaults(v)
	BindEnv(v)

	v.SetConfigName(ConfigName)
	v.AddConfigPath(abs)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, errors.New("E120").
				WithDetail("Failed to parse " + v.ConfigFileUsed() + ": " + err.Error()).
				WithSuggestion("Check that the configuration file is valid JSON or YAML")
		}
	}

	cfg := New()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.New("E120").Wrap(err)
	}

	cfg.configPath = v.ConfigFileUsed()
	if cfg.Root == "" {
		cfg.Root = abs
	} else if !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(abs, cfg.Root)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDir is Load with a fresh viper instance.
func LoadDir(dir string) (*Config, error) {
	return Load(viper.New(), dir)
}

// Path returns the path of the config file that was read, or "".
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields and normalizes Mode.
func (c *Config) applyDefaults() {
	if strings.EqualFold(strings.TrimSpace(c.Mode), ModeDevelopment) {
		c.Mode = ModeDevelopment
	} else {
		c.Mode = ModeProduction
	}

	if c.Entries.Client == "" {
		c.Entries.Client = DefaultClientEntry
	}
	if c.Entries.Server == "" {
		c.Entries.Server = DefaultServerEntry
	}
	if c.Dev.Debounce <= 0 {
		c.Dev.Debounce = DefaultDebounce
	}
	if c.Dev.MaxMessageSize <= 0 {
		c.Dev.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Sandbox.InstallTimeout <= 0 {
		c.Sandbox.InstallTimeout = DefaultInstallTimeout
	}
	if c.Sandbox.DrainTimeout <= 0 {
		c.Sandbox.DrainTimeout = DefaultDrainTimeout
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Dev.Port < 0 || c.Dev.Port > 65535 {
		return errors.New("E122").
			WithDetail("Port must be between 0 and 65535, got " + strconv.Itoa(c.Dev.Port))
	}
	return nil
}

// IsDevelopment reports whether client builds use development settings.
func (c *Config) IsDevelopment() bool {
	return c.Mode == ModeDevelopment
}

// DevAddress returns the listen address.
func (c *Config) DevAddress() string {
	return net.JoinHostPort(c.Dev.Host, strconv.Itoa(c.Dev.Port))
}

// DevURL returns a browsable URL for the dev server.
func (c *Config) DevURL() string {
	host := c.Dev.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	if c.Dev.Port == 80 {
		return "http://" + host
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Dev.Port))
}

// ClientEntryPath returns the absolute path of the client UI root.
func (c *Config) ClientEntryPath() string {
	return c.resolve(c.Entries.Client)
}

// ServerEntryPath returns the absolute path of the server logic root.
func (c *Config) ServerEntryPath() string {
	return c.resolve(c.Entries.Server)
}

// HasPublish reports whether artifact publishing is configured.
func (c *Config) HasPublish() bool {
	return c.Publish.Bucket != ""
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Root, path)
}
