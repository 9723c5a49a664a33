package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/greatbody/bomswap/internal/transcoder"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. BOMSWAP_OUTPUT_DIR.
const EnvPrefix = "BOMSWAP"

type Config struct {
	BufferSize      int    `mapstructure:"buffer_size" json:"buffer_size"`
	ReservedBytes   int    `mapstructure:"reserved_bytes" json:"reserved_bytes"`
	OutputDir       string `mapstructure:"output_dir" json:"output_dir"`
	UTF8Suffix      string `mapstructure:"utf8_suffix" json:"utf8_suffix"`
	UnicodeSuffix   string `mapstructure:"unicode_suffix" json:"unicode_suffix"`
	RoundTripSuffix string `mapstructure:"roundtrip_suffix" json:"roundtrip_suffix"`
	HexDump         bool   `mapstructure:"hex_dump" json:"hex_dump"`
	WriteRoundTrip  bool   `mapstructure:"write_round_trip" json:"write_round_trip"`
	FailOnUnknown   bool   `mapstructure:"fail_on_unknown" json:"fail_on_unknown"`
	ExpectEncoding  string `mapstructure:"expect_encoding" json:"expect_encoding"`
	MaxAllocation   int    `mapstructure:"max_allocation" json:"max_allocation"`
	Debug           bool   `mapstructure:"debug" json:"debug"`
}

// ReadLimit is the number of file bytes read into the conversion buffer.
func (c *Config) ReadLimit() int {
	return c.BufferSize - c.ReservedBytes
}

// Expected returns the encoding the input must carry, or EncodingUnknown
// when any recognized encoding is accepted.
func (c *Config) Expected() transcoder.Encoding {
	return transcoder.ParseEncoding(c.ExpectEncoding)
}

// Validate checks the settings for values the converter cannot work with.
func (c *Config) Validate() error {
	switch {
	case c.ReservedBytes < 0:
		return fmt.Errorf("reserved_bytes must not be negative, got %d", c.ReservedBytes)
	case c.ReadLimit() <= 0:
		return fmt.Errorf("buffer_size %d leaves no room after %d reserved bytes", c.BufferSize, c.ReservedBytes)
	case c.MaxAllocation <= 0:
		return fmt.Errorf("max_allocation must be positive, got %d", c.MaxAllocation)
	case c.UTF8Suffix == "" || c.UnicodeSuffix == "" || c.RoundTripSuffix == "":
		return errors.New("output suffixes must not be empty")
	case c.UTF8Suffix == c.UnicodeSuffix:
		return fmt.Errorf("utf8_suffix and unicode_suffix must differ, both are %q", c.UTF8Suffix)
	case c.ExpectEncoding != "" && c.Expected() == transcoder.EncodingUnknown:
		return fmt.Errorf("expect_encoding %q is not utf-16le or utf-8", c.ExpectEncoding)
	}
	return nil
}

// New returns a viper instance carrying the defaults and environment
// bindings. Command line flags are bound onto it by the caller.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads the JSON config file at path into v and returns the merged
// settings. A missing file is not an error; the defaults, environment and
// flags still apply. An empty path skips the file entirely.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if filepath.Ext(path) == "" {
			v.SetConfigType("json")
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("error reading config file %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() *Config {
	return &Config{
		BufferSize:      DefaultBufferSize,
		ReservedBytes:   DefaultReservedBytes,
		UTF8Suffix:      ".utf8.txt",
		UnicodeSuffix:   ".unicode.txt",
		RoundTripSuffix: ".roundtrip.txt",
		HexDump:         true,
		MaxAllocation:   DefaultMaxAllocation,
	}
}
