package config

import (
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SITESMITH_"

var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads .env files from the working directory. Variables
// already present in the process environment are not overwritten.
func loadEnvFiles() {
	for _, name := range envFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			slog.Warn("Failed to load env file", slog.String("path", name), slog.String("error", err.Error()))
			continue
		}
		slog.Debug("Loaded environment variables", slog.String("path", name))
	}
}

// envOverrides lists the settings that can be set from the environment.
// Nil fields leave the file value untouched.
type envOverrides struct {
	InputDir           *string `env:"INPUT_DIR"`
	OutputDir          *string `env:"OUTPUT_DIR"`
	LogLevel           *string `env:"LOG_LEVEL"`
	LogFormat          *string `env:"LOG_FORMAT"`
	SassStyle          *string `env:"SASS_STYLE"`
	SassImplementation *string `env:"SASS_IMPLEMENTATION"`
	SassBinary         *string `env:"SASS_BINARY"`
	BuildConcurrency   *int    `env:"BUILD_CONCURRENCY"`
	BuildStrict        *bool   `env:"BUILD_STRICT"`
	CheckLinks         *bool   `env:"BUILD_CHECK_LINKS"`
	ServerHost         *string `env:"SERVER_HOST"`
	ServerPort         *int    `env:"SERVER_PORT"`
	MetricsEnabled     *bool   `env:"METRICS_ENABLED"`
	OTLPEndpoint       *string `env:"OTLP_ENDPOINT"`
	SiteURL            *string `env:"SITE_URL"`
}

func applyEnvOverrides(cfg *Config) error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix}); err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid environment override").Fatal().Build()
	}

	setString(&cfg.Dir.Input, o.InputDir)
	setString(&cfg.Dir.Output, o.OutputDir)
	if o.LogLevel != nil {
		cfg.Log.Level = LogLevel(*o.LogLevel)
	}
	if o.LogFormat != nil {
		cfg.Log.Format = LogFormat(*o.LogFormat)
	}
	if o.SassStyle != nil {
		cfg.Sass.Style = SassStyle(*o.SassStyle)
	}
	if o.SassImplementation != nil {
		cfg.Sass.Implementation = SassImplementation(*o.SassImplementation)
	}
	setString(&cfg.Sass.Binary, o.SassBinary)
	if o.BuildConcurrency != nil {
		cfg.Build.Concurrency = *o.BuildConcurrency
	}
	if o.BuildStrict != nil {
		cfg.Build.Strict = *o.BuildStrict
	}
	if o.CheckLinks != nil {
		cfg.Build.CheckLinks = *o.CheckLinks
	}
	setString(&cfg.Server.Host, o.ServerHost)
	if o.ServerPort != nil {
		cfg.Server.Port = *o.ServerPort
	}
	if o.MetricsEnabled != nil {
		cfg.Metrics.Enabled = *o.MetricsEnabled
	}
	setString(&cfg.Tracing.OTLPEndpoint, o.OTLPEndpoint)
	setString(&cfg.Site.URL, o.SiteURL)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
