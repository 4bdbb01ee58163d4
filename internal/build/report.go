package build

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesmith/internal/linkverify"
	"git.home.luguber.info/inful/sitesmith/internal/metrics"
)

// Failure is a file that could not be built.
type Failure struct {
	Path     string // input-relative
	Category errors.ErrorCategory
	Err      error
}

// Report summarizes one build.
type Report struct {
	BuildID   string
	StartedAt time.Time
	Duration  time.Duration
	Outcome   metrics.BuildOutcome

	Compiled  int
	Copied    int
	Skipped   int
	Unhandled int
	Failures  []Failure

	// Outputs lists written files, output-relative and sorted.
	Outputs []string
	// BrokenLinks holds link-check warnings; they never fail the build.
	BrokenLinks []linkverify.BrokenLink

	mu sync.Mutex
}

// Failed returns the number of failed files.
func (r *Report) Failed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Failures)
}

func (r *Report) record(t task, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.Failures = append(r.Failures, Failure{Path: t.rel, Category: errors.GetCategory(err), Err: err})
		return
	}
	switch t.action {
	case actionCompile:
		r.Compiled++
		r.Outputs = append(r.Outputs, t.out)
	case actionCopy:
		r.Copied++
		r.Outputs = append(r.Outputs, t.out)
	case actionSkip:
		r.Skipped++
	default:
		r.Unhandled++
	}
}

func (r *Report) addOutput(out string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Outputs = append(r.Outputs, out)
}

// finish sorts the collections so reports are stable across runs.
func (r *Report) finish(start time.Time, outcome metrics.BuildOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Duration = time.Since(start)
	r.Outcome = outcome
	sort.Strings(r.Outputs)
	sort.Slice(r.Failures, func(i, j int) bool { return r.Failures[i].Path < r.Failures[j].Path })
}

// HTMLPages returns the emitted .html outputs.
func (r *Report) HTMLPages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pages []string
	for _, out := range r.Outputs {
		if strings.HasSuffix(out, ".html") {
			pages = append(pages, out)
		}
	}
	return pages
}

// Summary is a one-line description of the report.
func (r *Report) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("%d compiled, %d copied, %d skipped, %d failed in %s",
		r.Compiled, r.Copied, r.Skipped, len(r.Failures), r.Duration.Round(time.Millisecond))
}
