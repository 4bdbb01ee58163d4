package metrics

import "time"

// FileResult is the outcome of processing one input file.
type FileResult string

const (
	FileCompiled FileResult = "compiled"
	FileCopied   FileResult = "copied"
	FileSkipped  FileResult = "skipped"
	FileFailed   FileResult = "failed"
)

// BuildOutcome is the final status of a build.
type BuildOutcome string

const (
	BuildSuccess  BuildOutcome = "success"
	BuildPartial  BuildOutcome = "partial" // some files failed
	BuildFailed   BuildOutcome = "failed"
	BuildCanceled BuildOutcome = "canceled"
)

// Recorder receives build observations. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObserveFileDuration(format string, d time.Duration)
	IncFileResult(format string, result FileResult)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome BuildOutcome)
	AddPassthroughBytes(n int64)
	SetWorkers(n int)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) ObserveFileDuration(string, time.Duration) {}
func (NoopRecorder) IncFileResult(string, FileResult)          {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)        {}
func (NoopRecorder) IncBuildOutcome(BuildOutcome)              {}
func (NoopRecorder) AddPassthroughBytes(int64)                 {}
func (NoopRecorder) SetWorkers(int)                            {}
