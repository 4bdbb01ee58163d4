package config

import "time"

// DefaultDebounce is the watch debounce used when none is configured.
const DefaultDebounce = 300 * time.Millisecond

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Dir: DirConfig{
			Input:   ".",
			Output:  "_site",
			Layouts: "_layouts",
			Data:    "_data",
		},
		Formats:     []string{"md", "html", "scss"},
		Passthrough: []string{"**/*.jpg", "**/*.png"},
		Sass: SassConfig{
			LoadPaths:      []string{"_sass/"},
			Style:          SassStyleExpanded,
			Implementation: SassImplementationBuiltin,
			Binary:         "sass",
		},
		Markdown: MarkdownConfig{
			HTML:    true,
			Linkify: true,
			Anchors: AnchorsConfig{
				Permalink: true,
				Symbol:    "#",
				Class:     "header-anchor",
			},
			Highlight: HighlightConfig{
				Enabled: true,
				Style:   "github",
				Classes: true,
			},
			Diagrams: DiagramsConfig{Enabled: true},
		},
		Build: BuildConfig{CheckLinks: false},
		Watch: WatchConfig{Debounce: DefaultDebounce.String()},
		Server: ServerConfig{
			Host:       "127.0.0.1",
			Port:       8080,
			LiveReload: true,
		},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
		Tracing: TracingConfig{ServiceName: "sitesmith"},
	}
}
