package config

import (
	"strings"

	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
)

// NormalizationResult collects non-fatal adjustments made by Normalize.
type NormalizationResult struct {
	Warnings []string
}

func (r *NormalizationResult) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Normalize case-folds enumerations and trims list entries in place.
// Unknown enumeration values are configuration errors.
func Normalize(cfg *Config) (*NormalizationResult, error) {
	res := &NormalizationResult{}

	if _, err := logLevelNormalizer.NormalizeWithValidation(string(cfg.Log.Level)); err != nil {
		return nil, enumError(err)
	}
	lvl := logLevelNormalizer.NormalizeWithWarning("log.level", string(cfg.Log.Level))
	cfg.Log.Level = lvl.Value
	if lvl.Changed {
		res.warn(lvl.Warning)
	}

	format, err := logFormatNormalizer.NormalizeWithValidation(string(cfg.Log.Format))
	if err != nil {
		return nil, enumError(err)
	}
	cfg.Log.Format = format

	style, err := sassStyleNormalizer.NormalizeWithValidation(string(cfg.Sass.Style))
	if err != nil {
		return nil, enumError(err)
	}
	cfg.Sass.Style = style

	impl, err := sassImplementationNormalizer.NormalizeWithValidation(string(cfg.Sass.Implementation))
	if err != nil {
		return nil, enumError(err)
	}
	cfg.Sass.Implementation = impl

	cfg.Formats = trimTokens(cfg.Formats)
	cfg.Passthrough = trimList(cfg.Passthrough)
	cfg.Ignores = trimList(cfg.Ignores)
	for i := range cfg.Extensions {
		e := &cfg.Extensions[i]
		e.Extension = trimToken(e.Extension)
		e.Compiler = trimToken(e.Compiler)
		e.OutputExtension = trimToken(e.OutputExtension)
	}
	cfg.Sass.LoadPaths = trimList(cfg.Sass.LoadPaths)
	return res, nil
}

func enumError(err error) error {
	return errors.WrapError(err, errors.CategoryConfig, "invalid configuration value").Fatal().Build()
}

func trimToken(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), ".")
}

func trimTokens(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := trimToken(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func trimList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
