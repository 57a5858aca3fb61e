package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	. "github.com/takanoriyanagitani/go-rowdump2parquet/util"
)

const (
	EnvConfig      string = "ENV_CONFIG"
	EnvCompression string = "ENV_COMPRESSION"
	EnvOverwrite   string = "ENV_OVERWRITE"
	EnvLogLevel    string = "ENV_LOG_LEVEL"
	EnvClean       string = "ENV_CLEAN"
)

var GetEnvValByKey func(string) IO[string] = Lift(
	func(key string) (string, error) {
		val, found := os.LookupEnv(key)
		switch found {
		case true:
			return val, nil
		default:
			return "", fmt.Errorf("env var %s missing", key)
		}
	},
)

var configPath IO[string] = GetEnvValByKey(EnvConfig).Or(Of(""))

var loadOrDefault func(string) IO[Config] = Lift(
	func(path string) (Config, error) {
		if "" == path {
			return Default(), nil
		}
		return Load(path)
	},
)

var applyOverrides func(Config) IO[Config] = Lift(
	func(c Config) (Config, error) {
		override(&c.Compression, EnvCompression)
		override(&c.Overwrite, EnvOverwrite)
		override(&c.Logging.Level, EnvLogLevel)

		var clean string = fmt.Sprint(c.Clean.Enabled)
		override(&clean, EnvClean)
		enabled, e := strconv.ParseBool(clean)
		if nil != e {
			return c, fmt.Errorf("%w: %s=%q", ErrInvalidClean, EnvClean, clean)
		}
		c.Clean.Enabled = enabled
		return c, c.Validate()
	},
)

// FromEnv loads the file named by ENV_CONFIG (defaults otherwise) and
// applies the ENV_* overrides.
var FromEnv IO[Config] = Bind(
	Bind(configPath, loadOrDefault),
	applyOverrides,
)

func override(field *string, key string) {
	val, found := os.LookupEnv(key)
	if found && "" != val {
		*field = val
	}
}

var levels map[string]slog.Level = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	if "" == l.Level {
		return slog.LevelInfo, nil
	}
	level, found := levels[strings.ToLower(l.Level)]
	if !found {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLevel, l.Level)
	}
	return level, nil
}
