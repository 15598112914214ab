// Package config loads user settings from a TOML file with an AUDIOSPLIT_*
// environment overlay.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/sethvargo/go-envconfig"
)

// Config keys.
const (
	KeyOutputDir      = "output-dir"
	KeySegmentLength  = "segment-length"
	KeyBitrate        = "bitrate"
	KeyEngineDir      = "engine-dir"
	KeyRuntimeMirrors = "runtime-mirrors"
	KeyMaxBlindParts  = "max-blind-parts"
	KeyMinPartBytes   = "min-part-bytes"
	KeyLogLevel       = "log-level"
	KeyLogFile        = "log-file"
)

// EnvPrefix prefixes every environment override, e.g. AUDIOSPLIT_OUTPUT_DIR.
const EnvPrefix = "AUDIOSPLIT_"

// Config holds user configuration loaded from ~/.config/audiosplit/config.toml.
// Zero-valued file entries are filled from the environment, then from defaults.
type Config struct {
	OutputDir      string   `toml:"output-dir,omitempty" env:"OUTPUT_DIR"`
	SegmentLength  int      `toml:"segment-length,omitempty" env:"SEGMENT_LENGTH, default=1800" validate:"min=1"` // seconds
	Bitrate        int      `toml:"bitrate,omitempty" env:"BITRATE, default=192" validate:"min=8,max=320"`        // kbps
	EngineDir      string   `toml:"engine-dir,omitempty" env:"ENGINE_DIR"`
	RuntimeMirrors []string `toml:"runtime-mirrors,omitempty" env:"RUNTIME_MIRRORS" validate:"dive,url"`
	MaxBlindParts  int      `toml:"max-blind-parts,omitempty" env:"MAX_BLIND_PARTS, default=100" validate:"min=1,max=10000"`
	MinPartBytes   int64    `toml:"min-part-bytes,omitempty" env:"MIN_PART_BYTES, default=1000" validate:"min=0"`
	LogLevel       string   `toml:"log-level,omitempty" env:"LOG_LEVEL, default=warn" validate:"oneof=trace debug info warn error off"`
	LogFile        string   `toml:"log-file,omitempty" env:"LOG_FILE"`
}

type kind int

const (
	kindString kind = iota
	kindInt
	kindList
)

// keys lists every supported key in display order.
var keys = []struct {
	name string
	kind kind
	help string
}{
	{KeyOutputDir, kindString, "Directory parts are saved to"},
	{KeySegmentLength, kindInt, "Part length in seconds"},
	{KeyBitrate, kindInt, "MP3 bitrate in kbps"},
	{KeyEngineDir, kindString, "Directory holding ffmpeg (and ffprobe)"},
	{KeyRuntimeMirrors, kindList, "Comma-separated mirrors serving ffmpeg-<platform>.gz"},
	{KeyMaxBlindParts, kindInt, "Part limit when the duration is unknown"},
	{KeyMinPartBytes, kindInt, "Smallest part kept when the duration is unknown"},
	{KeyLogLevel, kindString, "trace, debug, info, warn, error or off"},
	{KeyLogFile, kindString, "Rotating diagnostic log file"},
}

// Keys returns the supported keys in display order.
func Keys() []string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.name
	}
	return names
}

// Help returns a one-line description of key.
func Help(key string) string {
	for _, k := range keys {
		if k.name == key {
			return k.help
		}
	}
	return ""
}

// EnvName returns the environment variable overriding key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

func lookupKind(key string) (kind, bool) {
	for _, k := range keys {
		if k.name == key {
			return k.kind, true
		}
	}
	return 0, false
}

var validate = validator.New()

// Validate checks every value is in range.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

// dir returns the configuration directory path.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/audiosplit.
func dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "audiosplit"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "audiosplit"), nil
}

// Path returns the full path to the config file.
func Path() (string, error) {
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config.toml"), nil
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
	}
	return p
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Loader reads a Config from a file and an environment.
type Loader struct {
	path     string
	lookuper envconfig.Lookuper
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPath reads the config file at p instead of the default location.
func WithPath(p string) LoaderOption {
	return func(l *Loader) { l.path = p }
}

// WithLookuper sets the environment source (unprefixed names are looked up with EnvPrefix).
func WithLookuper(lu envconfig.Lookuper) LoaderOption {
	return func(l *Loader) { l.lookuper = lu }
}

// NewLoader creates a Loader over the default path and the process environment.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{lookuper: envconfig.OsLookuper()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the configuration file and environment variables.
// Precedence: config file values, then AUDIOSPLIT_* variables, then defaults.
// A missing file is not an error.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	var cfg Config

	p := l.path
	if p == "" {
		var err error
		if p, err = Path(); err != nil {
			return cfg, err
		}
	}

	if err := decodeFile(p, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := overlay(ctx, &cfg, l.lookuper); err != nil {
		return cfg, err
	}
	cfg.OutputDir = ExpandPath(cfg.OutputDir)
	cfg.EngineDir = ExpandPath(cfg.EngineDir)
	cfg.LogFile = ExpandPath(cfg.LogFile)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Load reads the configuration with the default Loader.
func Load(ctx context.Context) (Config, error) {
	return NewLoader().Load(ctx)
}

// Default returns the configuration used when no file or variable is set.
func Default() Config {
	var cfg Config
	_ = overlay(context.Background(), &cfg, envconfig.MapLookuper(nil))
	return cfg
}

// overlay fills zero fields from lu, then from tag defaults.
func overlay(ctx context.Context, cfg *Config, lu envconfig.Lookuper) error {
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, lu),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func decodeFile(p string, cfg *Config) error {
	data, err := os.ReadFile(p) // #nosec G304 -- config path is constructed from home dir
	if err != nil {
		return err
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Store - config set|get|list
// ---------------------------------------------------------------------------

// Store edits the config file one key at a time.
type Store struct {
	path string
}

// NewStore returns a Store over the file at p, or the default location when p is empty.
func NewStore(p string) (*Store, error) {
	if p == "" {
		var err error
		if p, err = Path(); err != nil {
			return nil, err
		}
	}
	return &Store{path: p}, nil
}

// Path returns the file the Store edits.
func (s *Store) Path() string { return s.path }

// Set parses value for key, validates the resulting file and writes it.
// Creates the config directory and file if they don't exist.
func (s *Store) Set(key, value string) error {
	k, ok := lookupKind(key)
	if !ok {
		return fmt.Errorf("%w %q (valid keys: %s)", ErrUnknownKey, key, strings.Join(Keys(), ", "))
	}

	raw, err := s.read()
	if err != nil {
		return err
	}

	switch k {
	case kindInt:
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalidValue, key, value)
		}
		raw[key] = n
	case kindList:
		var items []string
		for item := range strings.SplitSeq(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		raw[key] = items
	default:
		raw[key] = value
	}

	data, err := toml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if err := overlay(context.Background(), &cfg, envconfig.MapLookuper(nil)); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
	}

	return s.write(data)
}

// Get returns the value of key stored in the file, empty if unset.
func (s *Store) Get(key string) (string, error) {
	if _, ok := lookupKind(key); !ok {
		return "", fmt.Errorf("%w %q (valid keys: %s)", ErrUnknownKey, key, strings.Join(Keys(), ", "))
	}
	raw, err := s.read()
	if err != nil {
		return "", err
	}
	return render(raw[key]), nil
}

// List returns every value stored in the file.
func (s *Store) List() (map[string]string, error) {
	raw, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for key, v := range raw {
		out[key] = render(v)
	}
	return out, nil
}

func (s *Store) read() (map[string]any, error) {
	raw := make(map[string]any)
	data, err := os.ReadFile(s.path) // #nosec G304 -- config path is constructed from home dir
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return raw, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to read config: %s: %w", s.path, err)
	}
	return raw, nil
}

// write replaces the file through a temp file so a crash never leaves it half written.
func (s *Store) write(data []byte) error {
	d := filepath.Dir(s.path)
	if err := os.MkdirAll(d, 0o750); err != nil { // #nosec G301 -- user config dir
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	tmp, err := os.CreateTemp(d, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("cannot write config file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil { // #nosec G302 -- config file with standard permissions
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func render(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, fmt.Sprint(item))
		}
		return strings.Join(items, ",")
	case []string:
		return strings.Join(v, ",")
	default:
		return fmt.Sprint(v)
	}
}

// ---------------------------------------------------------------------------
// Output directory
// ---------------------------------------------------------------------------

// ValidOutputDir checks that d is a writable directory, creating it if missing.
func ValidOutputDir(d string) error {
	if d == "" {
		return fmt.Errorf("output-dir cannot be empty")
	}
	d = ExpandPath(d)

	info, err := os.Stat(d)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := os.MkdirAll(d, 0o750); err != nil { // #nosec G301 -- user output dir
				return fmt.Errorf("cannot create directory: %w", err)
			}
			return nil
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", d)
	}

	// Check if writable by attempting to create a temp file.
	f, err := os.CreateTemp(d, ".audiosplit-write-test-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}
