package build

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitesmith/internal/config"
	"git.home.luguber.info/inful/sitesmith/internal/data"
	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesmith/internal/linkverify"
	"git.home.luguber.info/inful/sitesmith/internal/logfields"
	"git.home.luguber.info/inful/sitesmith/internal/metrics"
	"git.home.luguber.info/inful/sitesmith/internal/page"
	"git.home.luguber.info/inful/sitesmith/internal/registry"
)

const tracerName = "git.home.luguber.info/inful/sitesmith/internal/build"

// Service runs builds for one configuration. A Service may run many builds
// sequentially; each Run wires a fresh Pipeline.
type Service struct {
	cfg      *config.Config
	logger   *slog.Logger
	recorder metrics.Recorder
	tracer   trace.Tracer
}

// NewService creates a Service with no-op metrics and the global tracer.
func NewService(cfg *config.Config) *Service {
	return &Service{
		cfg:      cfg,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		tracer:   otel.Tracer(tracerName),
	}
}

// WithLogger sets the logger.
func (s *Service) WithLogger(l *slog.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithRecorder sets the metrics recorder.
func (s *Service) WithRecorder(r metrics.Recorder) *Service {
	if r != nil {
		s.recorder = r
	}
	return s
}

// WithTracer overrides the tracer (tests use an in-memory provider).
func (s *Service) WithTracer(t trace.Tracer) *Service {
	if t != nil {
		s.tracer = t
	}
	return s
}

// Config returns the configuration the service builds with.
func (s *Service) Config() *config.Config { return s.cfg }

// run is the state of one build.
type run struct {
	*Service
	id       string
	pipeline *Pipeline
	inputDir string
	outDir   string
	base     data.Data
	site     map[string]any
	report   *Report
}

// Run performs one build. Configuration problems (bad registrations,
// duplicate outputs, unreadable data files) are returned as errors before
// any output is written. File failures are collected in the Report; the
// returned error is nil for them unless build.strict is set.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	r := &run{
		Service:  s,
		id:       uuid.NewString(),
		inputDir: s.cfg.InputDir(),
		outDir:   s.cfg.OutputDir(),
	}
	r.report = &Report{BuildID: r.id, StartedAt: start}

	ctx, span := s.tracer.Start(ctx, "build", trace.WithAttributes(
		attribute.String("build.id", r.id),
		attribute.String("build.input", r.inputDir),
	))
	defer span.End()

	log := s.logger.With(logfields.BuildID(r.id))
	log.Info("Build started", logfields.Path(r.inputDir), logfields.Output(r.outDir))

	err := r.execute(ctx, log)

	outcome := metrics.BuildSuccess
	switch {
	case err != nil && ctx.Err() != nil:
		outcome = metrics.BuildCanceled
	case err != nil:
		outcome = metrics.BuildFailed
	case r.report.Failed() > 0:
		outcome = metrics.BuildPartial
	}
	r.report.finish(start, outcome)

	s.recorder.ObserveBuildDuration(r.report.Duration)
	s.recorder.IncBuildOutcome(outcome)
	span.SetAttributes(
		attribute.Int("build.compiled", r.report.Compiled),
		attribute.Int("build.copied", r.report.Copied),
		attribute.Int("build.failed", len(r.report.Failures)),
		attribute.String("build.outcome", string(outcome)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("Build failed", logfields.Error(err), logfields.DurationMS(msSince(start)))
		return r.report, err
	}

	log.Info("Build finished",
		slog.String("outcome", string(outcome)),
		slog.Int("compiled", r.report.Compiled),
		slog.Int("copied", r.report.Copied),
		slog.Int("skipped", r.report.Skipped),
		slog.Int("failed", len(r.report.Failures)),
		logfields.DurationMS(msSince(start)))
	return r.report, nil
}

func (r *run) execute(ctx context.Context, log *slog.Logger) error {
	pipeline, err := NewPipeline(r.cfg, log)
	if err != nil {
		return err
	}
	r.pipeline = pipeline
	defer func() {
		if cerr := pipeline.Close(); cerr != nil {
			log.Warn("Failed to stop stylesheet compiler", logfields.Error(cerr))
		}
	}()

	globals, err := data.LoadDir(r.cfg.DataDir())
	if err != nil {
		return err
	}
	r.base = data.Merge(
		data.Data{"diagram": map[string]any{"enabled": r.cfg.Markdown.Diagrams.Enabled}},
		r.cfg.Data,
		globals,
	)
	r.site = map[string]any{
		"title":   r.cfg.Site.Title,
		"url":     r.cfg.Site.URL,
		"buildId": r.id,
	}

	files, err := walker{
		root:     r.inputDir,
		excluded: []string{r.outDir, r.cfg.LayoutsDir(), r.cfg.DataDir()},
		ignores:  r.cfg.Ignores,
	}.walk()
	if err != nil {
		return err
	}

	reserved := map[string]string{}
	if css := r.highlightCSS(); css != "" {
		reserved[css] = "markdown.highlight.css_file"
	}
	tasks, err := plan(pipeline.Registry, r.inputDir, files, reserved)
	if err != nil {
		return err
	}

	if r.cfg.Output.Clean {
		if err := os.RemoveAll(r.outDir); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to clean output directory").
				WithFile(r.outDir).Build()
		}
	}
	if err := os.MkdirAll(r.outDir, 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create output directory").
			WithFile(r.outDir).Build()
	}

	if err := r.processAll(ctx, log, tasks); err != nil {
		return err
	}

	if css := r.highlightCSS(); css != "" {
		if err := r.writeHighlightCSS(css); err != nil {
			return err
		}
		r.report.addOutput(css)
	}

	if r.cfg.Build.CheckLinks {
		r.checkLinks(ctx, log)
	}
	return nil
}

func (r *run) processAll(ctx context.Context, log *slog.Logger, tasks []task) error {
	workers := r.cfg.Build.Concurrency
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	r.recorder.SetWorkers(workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, t := range tasks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			err := r.process(gctx, log, t)
			r.report.record(t, err)
			if err != nil {
				log.Error("File failed", logfields.File(t.rel),
					logfields.Category(string(errors.GetCategory(err))), logfields.Error(err))
				if r.cfg.Build.Strict {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.WrapError(err, errors.CategoryBuild, "build stopped on first failure (strict mode)").Build()
	}
	if err := ctx.Err(); err != nil {
		return errors.WrapError(err, errors.CategoryBuild, "build canceled").Build()
	}
	return nil
}

// process handles one file. Compile and render are sequential for a file;
// only this goroutine writes t.out.
func (r *run) process(ctx context.Context, log *slog.Logger, t task) error {
	switch t.action {
	case actionUnhandled:
		log.Debug("No compiler for file", logfields.File(t.rel))
		return nil
	case actionSkip:
		log.Debug("Skipping file", logfields.File(t.rel), logfields.Format(t.rule.Token))
		r.recorder.IncFileResult(t.format(), metrics.FileSkipped)
		return nil
	}

	ctx, span := r.tracer.Start(ctx, "file", trace.WithAttributes(
		attribute.String("file.path", t.rel),
		attribute.String("file.action", t.action.String()),
		attribute.String("file.format", t.format()),
	))
	defer span.End()

	start := time.Now()
	var err error
	result := metrics.FileCompiled
	if t.action == actionCopy {
		result = metrics.FileCopied
		err = r.copyFile(t)
	} else {
		err = r.compile(ctx, t)
	}
	r.recorder.ObserveFileDuration(t.format(), time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.recorder.IncFileResult(t.format(), metrics.FileFailed)
		return err
	}
	r.recorder.IncFileResult(t.format(), result)
	log.Debug("File written", logfields.File(t.rel), logfields.Output(t.out), logfields.DurationMS(msSince(start)))
	return nil
}

func (r *run) compile(ctx context.Context, t task) error {
	content, err := os.ReadFile(t.abs)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to read input").WithFile(t.rel).Build()
	}
	info, err := os.Stat(t.abs)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to stat input").WithFile(t.rel).Build()
	}

	tmpl, err := t.rule.Compile(ctx, registry.Source{Path: t.rel, AbsPath: t.abs, Content: content})
	if err != nil {
		return page.Attribute(err, t.rel)
	}

	d := data.Merge(r.base, data.Data{
		"page": map[string]any{
			"inputPath":  "./" + t.rel,
			"outputPath": t.out,
			"url":        pageURL(t.out),
			"fileSlug":   fileSlug(t.rel, t.rule.Token),
			"date":       info.ModTime(),
		},
		"site": r.site,
	})
	out, err := tmpl.Render(ctx, d)
	if err != nil {
		if _, ok := errors.AsClassified(err); ok {
			return page.Attribute(err, t.rel)
		}
		return errors.WrapError(err, errors.CategoryRender, "render failed").WithFile(t.rel).Build()
	}
	return r.write(t.out, out)
}

func (r *run) write(out string, content []byte) error {
	dst := filepath.Join(r.outDir, filepath.FromSlash(out))
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create output directory").WithFile(out).Build()
	}
	//nolint:gosec // site output is meant to be world readable
	if err := os.WriteFile(dst, content, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write output").WithFile(out).Build()
	}
	return nil
}

func (r *run) copyFile(t task) error {
	src, err := os.Open(t.abs)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to open passthrough file").WithFile(t.rel).Build()
	}
	defer func() { _ = src.Close() }()

	dst := filepath.Join(r.outDir, filepath.FromSlash(t.out))
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create output directory").WithFile(t.out).Build()
	}
	//nolint:gosec // site output is meant to be world readable
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create output").WithFile(t.out).Build()
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to copy passthrough file").WithFile(t.rel).Build()
	}
	r.recorder.AddPassthroughBytes(n)
	return nil
}

// highlightCSS returns the output path of the highlighter stylesheet, or ""
// when none is emitted.
func (r *run) highlightCSS() string {
	h := r.cfg.Markdown.Highlight
	if !h.Enabled || !h.Classes || h.CSSFile == "" {
		return ""
	}
	return filepath.ToSlash(filepath.Clean(filepath.FromSlash(h.CSSFile)))
}

func (r *run) writeHighlightCSS(out string) error {
	dst := filepath.Join(r.outDir, filepath.FromSlash(out))
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create output directory").WithFile(out).Build()
	}
	//nolint:gosec // site output is meant to be world readable
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create highlight stylesheet").WithFile(out).Build()
	}
	err = r.pipeline.Markdown.WriteHighlightCSS(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write highlight stylesheet").WithFile(out).Build()
	}
	return nil
}

func (r *run) checkLinks(ctx context.Context, log *slog.Logger) {
	checker, err := linkverify.NewChecker(r.outDir, r.cfg.Site.URL)
	if err != nil {
		log.Warn("Link check skipped", logfields.Error(err))
		return
	}
	broken, err := checker.Check(ctx, r.report.HTMLPages())
	if err != nil {
		log.Warn("Link check failed", logfields.Error(err))
		return
	}
	for _, b := range broken {
		log.Warn("Broken link", logfields.File(b.Page), logfields.URL(b.URL), slog.String("reason", b.Reason))
	}
	r.report.mu.Lock()
	r.report.BrokenLinks = broken
	r.report.mu.Unlock()
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
