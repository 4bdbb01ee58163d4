package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("path", "sitesmith.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		if err.Message() != "invalid configuration" {
			t.Errorf("expected message 'invalid configuration', got %s", err.Message())
		}

		path, exists := err.Context().GetString("path")
		if !exists || path != "sitesmith.yaml" {
			t.Errorf("expected context path=sitesmith.yaml, got %v", path)
		}
	})

	t.Run("Error detection", func(t *testing.T) {
		err := ConfigError("duplicate extension").Build()

		if !IsClassified(err) {
			t.Error("expected error to be classified")
		}
		if !HasCategory(err, CategoryConfig) {
			t.Error("expected error to have config category")
		}
		if !HasSeverity(err, SeverityFatal) {
			t.Error("expected error to have fatal severity")
		}
		if !err.NeedsUserAction() {
			t.Error("expected config error to need user action")
		}
		if !err.IsFatal() {
			t.Error("expected config error to be fatal")
		}
	})

	t.Run("Detection through wrapping", func(t *testing.T) {
		inner := CompileError("unexpected }").WithFile("a.scss").Build()
		wrapped := fmt.Errorf("compile stage: %w", inner)

		if !HasCategory(wrapped, CategoryCompile) {
			t.Error("expected wrapped error to keep compile category")
		}
		if GetCategory(errors.New("plain")) != CategoryInternal {
			t.Error("expected unclassified error to map to internal")
		}
	})
}

func TestClassifiedErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *ClassifiedError
		want string
	}{
		{
			name: "no file",
			err:  ConfigError("extension already registered").Build(),
			want: "[config:fatal] extension already registered",
		},
		{
			name: "file and position",
			err:  CompileError("undefined variable $x").WithFile("styles/main.scss").WithPosition(3, 9).Build(),
			want: "[compile:error] styles/main.scss:3:9: undefined variable $x",
		},
		{
			name: "file with cause",
			err:  WrapError(errors.New("permission denied"), CategoryFileSystem, "write output").WithFile("img/a.png").Build(),
			want: "[filesystem:error] img/a.png: write output: permission denied",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorBuilder(t *testing.T) {
	t.Run("Fluent API", func(t *testing.T) {
		originalErr := errors.New("original error")
		err := WrapError(originalErr, CategoryFileSystem, "read source").
			Warning().
			WithContext("operation", "read").
			Build()

		if !errors.Is(err, originalErr) {
			t.Error("expected wrapped error to match original")
		}
		if err.Severity() != SeverityWarning {
			t.Errorf("expected warning severity, got %s", err.Severity())
		}
		if err.NeedsUserAction() {
			t.Error("expected filesystem error to not need user action")
		}
		if err.RetryStrategy() != RetryNever {
			t.Errorf("expected retry strategy never, got %s", err.RetryStrategy())
		}
	})

	t.Run("WithContext copies", func(t *testing.T) {
		base := CompileError("bad").Build()
		derived := base.WithContext(KeyFile, "x.scss")

		if _, ok := base.Context().Get(KeyFile); ok {
			t.Error("expected base context to be unchanged")
		}
		if f, _ := derived.Context().GetString(KeyFile); f != "x.scss" {
			t.Errorf("expected derived file x.scss, got %q", f)
		}
	})

	t.Run("Is compares category and message", func(t *testing.T) {
		a := ConfigError("duplicate").WithContext("token", "scss").Build()
		b := ConfigError("duplicate").Build()
		if !errors.Is(a, b) {
			t.Error("expected errors with same category and message to match")
		}
	})
}
