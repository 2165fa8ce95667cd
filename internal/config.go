package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/xmltable/internal/charset"
	"github.com/starford/xmltable/internal/models"
	"github.com/starford/xmltable/internal/watch"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Input    InputConfig       `yaml:"input"`
	Output   OutputConfig      `yaml:"output"`
	Convert  ConvertConfig     `yaml:"convert"`
	Manifest ManifestConfig    `yaml:"manifest"`
	Watch    WatchConfig       `yaml:"watch"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Input.Validate(); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if err := c.Convert.Validate(); err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	if err := c.Manifest.Validate(); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration. CORSOrigins lists browser
// origins allowed to call the API; empty disables CORS handling.
type HTTPConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// InputConfig describes the tree of XML exports to convert.
type InputConfig struct {
	Root     string `yaml:"root"`
	Suffix   string `yaml:"suffix"`
	Encoding string `yaml:"encoding"`
}

// Validate validates the input configuration.
func (c *InputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Suffix, validation.Required),
		validation.Field(&c.Encoding, validation.By(knownEncoding)),
	)
}

// OutputConfig describes the CSV destination.
type OutputConfig struct {
	Path      string `yaml:"path"`
	Delimiter string `yaml:"delimiter"`
	NoHeader  bool   `yaml:"no_header"`
	Encoding  string `yaml:"encoding"`
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Delimiter, validation.Required, validation.By(singleRune)),
		validation.Field(&c.Encoding, validation.By(knownEncoding)),
	)
}

// Comma returns the delimiter as a rune.
func (c *OutputConfig) Comma() rune {
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

// ConvertConfig holds record detection and table settings.
//
// RecordLimit caps record-tag matches per file; -1 or 0 disables the cap.
type ConvertConfig struct {
	RecordTag   string   `yaml:"record_tag"`
	NameAttr    string   `yaml:"name_attr"`
	RecordLimit int      `yaml:"record_limit"`
	BufferSize  int      `yaml:"buffer_size"`
	DedupPrefix string   `yaml:"dedup_prefix"`
	Columns     []string `yaml:"columns"`
}

// Validate validates the convert configuration.
func (c *ConvertConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RecordTag, validation.Required),
		validation.Field(&c.NameAttr, validation.Required),
		validation.Field(&c.RecordLimit, validation.Min(-1)),
		validation.Field(&c.BufferSize, validation.Required, validation.Min(1)),
		validation.Field(&c.DedupPrefix, validation.Required),
		validation.Field(&c.Columns, validation.Required, validation.Each(validation.Required),
			validation.By(hasPrefixedColumn(c.DedupPrefix))),
	)
}

// hasPrefixedColumn rejects column sets that give the dedup key nothing to
// read, which would collapse every record into one.
func hasPrefixedColumn(prefix string) validation.RuleFunc {
	return func(value any) error {
		cols, _ := value.([]string)
		if prefix == "" || len(cols) == 0 {
			return nil
		}
		for _, c := range cols {
			if strings.HasPrefix(c, prefix) {
				return nil
			}
		}
		return fmt.Errorf("no column starts with dedup prefix %q", prefix)
	}
}

// ManifestConfig holds the SQLite run manifest location. An empty path
// disables the manifest. Runs older than Retention are pruned at startup;
// zero keeps everything.
type ManifestConfig struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// Validate validates the manifest configuration.
func (c *ManifestConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Retention, validation.Min(time.Duration(0))),
	)
}

// Enabled reports whether runs are recorded.
func (c *ManifestConfig) Enabled() bool {
	return c.Path != ""
}

// WatchConfig holds serve-mode watcher settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

func knownEncoding(value any) error {
	label, _ := value.(string)
	if label == "" {
		return nil
	}
	if _, err := charset.Lookup(label); err != nil {
		return fmt.Errorf("unknown encoding %q", label)
	}
	return nil
}

func singleRune(value any) error {
	s, _ := value.(string)
	if utf8.RuneCountInString(s) != 1 {
		return errors.New("must be exactly one character")
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return fmt.Errorf("%q cannot be used as a delimiter", r)
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Input: InputConfig{
			Root:   "./input",
			Suffix: ".xml",
		},
		Output: OutputConfig{
			Path:      "./output.csv",
			Delimiter: ",",
		},
		Convert: ConvertConfig{
			RecordTag:   "Data",
			NameAttr:    "name",
			RecordLimit: -1,
			BufferSize:  1000,
			DedupPrefix: "SamS.",
			Columns:     append([]string(nil), models.DefaultColumns...),
		},
		Manifest: ManifestConfig{
			Path:      "./xmltable.db",
			Retention: 30 * 24 * time.Hour,
		},
		Watch: WatchConfig{
			Debounce: watch.DefaultDebounce,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
