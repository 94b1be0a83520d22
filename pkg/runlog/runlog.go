// Package runlog defines the log record shape emitted by the executor and
// the sinks that consume it. Entries are ordered exactly as the interpreter
// executed instructions; sinks must never block the producer.
package runlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SentinelComplete is the message of the final record of every run.
const SentinelComplete = "__EXECUTION_COMPLETE__"

// Level is the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
	LevelDebug Level = "DEBUG"
)

// Category names the instruction category an entry originates from.
type Category string

const (
	CatStart      Category = "START"
	CatEnd        Category = "END"
	CatLog        Category = "LOG"
	CatDelay      Category = "DELAY"
	CatSetVar     Category = "SET VARIABLE"
	CatEvaluate   Category = "EVALUATE"
	CatIf         Category = "IF CONDITION"
	CatLoop       Category = "LOOP"
	CatWhile      Category = "WHILE"
	CatCall       Category = "CALL SCENARIO"
	CatPowershell Category = "RUN POWERSHELL"
	CatTryCatch   Category = "TRY CATCH"
	CatExecution  Category = "EXECUTION"
	CatSystem     Category = "SYSTEM"
)

// Entry is one log record. Timestamp is relative to run start, formatted as
// [MM:SS.mmm].
type Entry struct {
	Timestamp string   `json:"timestamp"`
	NodeID    string   `json:"node_id,omitempty"`
	Level     Level    `json:"level"`
	Activity  Category `json:"activity"`
	Message   string   `json:"message"`
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %-5s [%s] %s", e.Timestamp, e.Level, e.Activity, e.Message)
}

// Stamp formats the elapsed time since start as [MM:SS.mmm].
func Stamp(start time.Time) string {
	return StampAt(start, time.Now())
}

// StampAt is Stamp with an explicit "now", for tests.
func StampAt(start, now time.Time) string {
	elapsed := now.Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	mins := int(elapsed / time.Minute)
	secs := int(elapsed/time.Second) % 60
	millis := int(elapsed/time.Millisecond) % 1000
	return fmt.Sprintf("[%02d:%02d.%03d]", mins, secs, millis)
}

// Sink consumes entries in execution order.
type Sink interface {
	Emit(Entry)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Entry)

func (f SinkFunc) Emit(e Entry) { f(e) }

// MultiSink fans one entry out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Emit(e Entry) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Discard drops every entry.
var Discard Sink = SinkFunc(func(Entry) {})

// SlogSink bridges entries onto a structured logger.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Emit(e Entry) {
	lvl := slog.LevelInfo
	switch e.Level {
	case LevelWarn:
		lvl = slog.LevelWarn
	case LevelError:
		lvl = slog.LevelError
	case LevelDebug:
		lvl = slog.LevelDebug
	}
	s.Logger.Log(context.Background(), lvl, e.Message,
		slog.String("activity", string(e.Activity)),
		slog.String("node_id", e.NodeID),
		slog.String("elapsed", e.Timestamp),
	)
}
