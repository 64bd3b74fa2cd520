package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		// Port is the Port number to listen on. The default is 8080.
		Port int `mapstructure:"port" validate:"required,port"`
		// Hostname is the Hostname to listen on. The default is 0.0.0.0.
		Hostname string `mapstructure:"hostname" validate:"required"`
		// AllowedOrigins is a list of origins that are allowed to call the API.
		// The default is ["*"].
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	} `mapstructure:"server"`
	Log struct {
		Level slog.Level `mapstructure:"level"`
	} `mapstructure:"log"`
	Session struct {
		TypingTimeout time.Duration `mapstructure:"typing_timeout" validate:"min=0"`
		TypingIdle    time.Duration `mapstructure:"typing_idle" validate:"min=0"`
		PageSize      int           `mapstructure:"page_size" validate:"required,min=1,max=100"`
		// StartRetry is the delay between two attempts at starting the session.
		StartRetry time.Duration `mapstructure:"start_retry" validate:"required"`
	} `mapstructure:"session"`
	Transport struct {
		ConnectDelay     time.Duration `mapstructure:"connect_delay" validate:"min=0"`
		MinLatency       time.Duration `mapstructure:"min_latency" validate:"min=0"`
		MaxLatency       time.Duration `mapstructure:"max_latency" validate:"gtefield=MinLatency"`
		PresenceInterval time.Duration `mapstructure:"presence_interval" validate:"min=0"`
		IncomingInterval time.Duration `mapstructure:"incoming_interval" validate:"min=0"`
		ReplyProbability float64       `mapstructure:"reply_probability" validate:"min=0,max=1"`
		TypingDuration   time.Duration `mapstructure:"typing_duration" validate:"min=0"`
		DeliveredDelay   time.Duration `mapstructure:"delivered_delay" validate:"min=0"`
		ReadDelay        time.Duration `mapstructure:"read_delay" validate:"min=0"`
		// Seed makes the simulation reproducible, zero seeds from the clock.
		Seed int64 `mapstructure:"seed"`
	} `mapstructure:"transport"`
	Backend struct {
		MinLatency  time.Duration `mapstructure:"min_latency" validate:"min=0"`
		MaxLatency  time.Duration `mapstructure:"max_latency" validate:"gtefield=MinLatency"`
		FailureRate float64       `mapstructure:"failure_rate" validate:"min=0,max=1"`
	} `mapstructure:"backend"`
	valid bool
}

var defaults = map[string]any{
	"server.port":                 8080,
	"server.hostname":             "0.0.0.0",
	"server.allowed_origins":      []string{"*"},
	"log.level":                   "debug",
	"session.typing_timeout":      5 * time.Second,
	"session.typing_idle":         3 * time.Second,
	"session.page_size":           20,
	"session.start_retry":         2 * time.Second,
	"transport.connect_delay":     500 * time.Millisecond,
	"transport.min_latency":       50 * time.Millisecond,
	"transport.max_latency":       300 * time.Millisecond,
	"transport.presence_interval": 15 * time.Second,
	"transport.incoming_interval": 30 * time.Second,
	"transport.reply_probability": 0.7,
	"transport.typing_duration":   2 * time.Second,
	"transport.delivered_delay":   time.Second,
	"transport.read_delay":        2 * time.Second,
	"transport.seed":              0,
	"backend.min_latency":         100 * time.Millisecond,
	"backend.max_latency":         400 * time.Millisecond,
	"backend.failure_rate":        0.0,
}

// LoadConfig loads the configuration from defaults, an optional config.yaml,
// an optional .env file and environment variables, in increasing order of
// precedence. dirs are searched for config.yaml, the .env file is read from
// the first one. The default is the working directory.
// Any invalid configuration will not be loaded, and the error wil be cought in the validation step.
func LoadConfig(dirs ...string) (*Config, error) {
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	if err := godotenv.Load(filepath.Join(dirs[0], ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	config := &Config{}
	v := viper.New()
	v.SetConfigName("config")
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range slices.Sorted(maps.Keys(defaults)) {
		v.SetDefault(key, defaults[key])
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(config,
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(",")),
		),
	); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.valid {
		return nil
	}
	err := validate.Struct(c)
	if err != nil {
		return err
	}
	c.valid = true
	return nil
}

// FormatValidationErrors returns one translated line per invalid field,
// ordered by field.
func FormatValidationErrors(err error) string {

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	trans, _ := uniTrans.GetTranslator("en")
	translated := errs.Translate(trans)

	var sb strings.Builder
	for _, k := range slices.Sorted(maps.Keys(translated)) {
		sb.WriteString(translated[k])
		sb.WriteString("\n")
	}
	return sb.String()
}
