// Package progress defines the milestone callback the pipeline reports
// through. The caller decides what to do with messages (log them, publish
// them to a job channel); the pipeline only ever calls Notify.
package progress

// Level classifies a progress message.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelBatch   Level = "batch"
)

// Func receives a milestone message. It may be invoked from a worker
// goroutine and must be cheap.
type Func func(message string, level Level)

// Notify invokes fn if set. A panicking callback never takes down a
// production run.
func Notify(fn Func, message string, level Level) {
	if fn == nil {
		return
	}
	defer func() { _ = recover() }()
	fn(message, level)
}
