package funcs

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/eval"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/types"
)

// TraceLogger defines the interface for structured logging of trace() calls.
type TraceLogger interface {
	Log(entry TraceEntry)
}

// TraceEntry represents a structured trace log entry.
type TraceEntry struct {
	Timestamp  time.Time   `json:"timestamp"`
	Name       string      `json:"name"`
	Input      interface{} `json:"input"`
	Projection interface{} `json:"projection,omitempty"`
	Count      int         `json:"count"`
}

// DefaultTraceLogger logs trace entries to stderr in JSON format.
type DefaultTraceLogger struct {
	mu     sync.Mutex
	writer io.Writer
	json   bool
}

// NewDefaultTraceLogger creates a new default trace logger.
func NewDefaultTraceLogger(writer io.Writer, jsonFormat bool) *DefaultTraceLogger {
	return &DefaultTraceLogger{
		writer: writer,
		json:   jsonFormat,
	}
}

// Log writes a trace entry to the logger's writer.
func (l *DefaultTraceLogger) Log(entry TraceEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.json {
		data, _ := json.Marshal(entry)
		l.writer.Write(data)
		l.writer.Write([]byte("\n"))
	} else {
		if entry.Name != "" {
			io.WriteString(l.writer, "[trace] "+entry.Name+": ")
		} else {
			io.WriteString(l.writer, "[trace] ")
		}
		io.WriteString(l.writer, formatCollection(entry.Input))
		io.WriteString(l.writer, "\n")
		if entry.Projection != nil {
			io.WriteString(l.writer, "[trace] "+entry.Name+" projection: ")
			io.WriteString(l.writer, formatCollection(entry.Projection))
			io.WriteString(l.writer, "\n")
		}
	}
}

// NullTraceLogger discards all trace output (useful for production).
type NullTraceLogger struct{}

// Log does nothing.
func (NullTraceLogger) Log(TraceEntry) {}

// SlogTraceLogger logs trace() calls through log/slog, the structured
// logger this engine uses for its ambient log sites — no third-party
// logging library appears anywhere in the retrieved corpus.
type SlogTraceLogger struct {
	logger *slog.Logger
}

// NewSlogTraceLogger wraps logger (or slog.Default() if nil).
func NewSlogTraceLogger(logger *slog.Logger) *SlogTraceLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogTraceLogger{logger: logger}
}

// Log emits a structured trace record at Info level.
func (l *SlogTraceLogger) Log(entry TraceEntry) {
	attrs := []any{"name", entry.Name, "count", entry.Count, "input", formatCollection(entry.Input)}
	if entry.Projection != nil {
		attrs = append(attrs, "projection", formatCollection(entry.Projection))
	}
	l.logger.Info("fhirpath trace", attrs...)
}

// traceLogger is the global trace logger instance.
var (
	traceLogger   TraceLogger = NewSlogTraceLogger(nil)
	traceLoggerMu sync.RWMutex
)

// SetTraceLogger sets the global trace logger.
// Use NullTraceLogger{} to disable trace output in production.
func SetTraceLogger(logger TraceLogger) {
	traceLoggerMu.Lock()
	defer traceLoggerMu.Unlock()
	traceLogger = logger
}

// GetTraceLogger returns the current trace logger.
func GetTraceLogger() TraceLogger {
	traceLoggerMu.RLock()
	defer traceLoggerMu.RUnlock()
	return traceLogger
}

func formatCollection(input interface{}) string {
	switch v := input.(type) {
	case types.Collection:
		if v.Empty() {
			return "{ }"
		}
		result := "{ "
		for i, item := range v {
			if i > 0 {
				result += ", "
			}
			result += item.String()
		}
		result += " }"
		return result
	default:
		data, _ := json.Marshal(v)
		return string(data)
	}
}

func init() {
	// Register utility functions
	Register(FuncDef{
		Name:    "trace",
		MinArgs: 1,
		MaxArgs: 2,
		Fn:      fnTrace,
	})

	Register(FuncDef{
		Name:    "now",
		MinArgs: 0,
		MaxArgs: 0,
		Fn:      fnNow,
	})

	Register(FuncDef{
		Name:    "today",
		MinArgs: 0,
		MaxArgs: 0,
		Fn:      fnToday,
	})

	Register(FuncDef{
		Name:    "timeOfDay",
		MinArgs: 0,
		MaxArgs: 0,
		Fn:      fnTimeOfDay,
	})

	Register(FuncDef{
		Name:    "defineVariable",
		MinArgs: 1,
		MaxArgs: 2,
		Shape:   eval.ShapeContextAware,
		Fn:      fnDefineVariable,
	})
}

// reservedVariableNames cannot be shadowed by defineVariable: the
// lambda/environment implicits, the resource roots, and the
// terminology-provider namespaces.
var reservedVariableNames = map[string]bool{
	"context": true, "resource": true, "rootResource": true,
	"this": true, "index": true, "total": true,
	"sct": true, "loinc": true, "ucum": true,
}

// fnDefineVariable binds name to value (or to the current input when value
// is omitted) for the remainder of the expression chain, returning the
// input focus unchanged.
func fnDefineVariable(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	if len(args) == 0 {
		return nil, eval.InvalidArgumentsError("defineVariable", 1, 0)
	}

	name, ok := toStringArg(args[0])
	if !ok || name == "" {
		return nil, eval.NewEvalError(eval.ErrInvalidArguments, "defineVariable: name must be a non-empty string")
	}
	if reservedVariableNames[name] || strings.HasPrefix(name, "vs-") || strings.HasPrefix(name, "ext-") {
		return nil, eval.NewEvalError(eval.ErrInvalidArguments, "defineVariable: '%s' shadows a reserved name", name)
	}
	if _, exists := ctx.GetVariable(name); exists {
		return nil, eval.NewEvalError(eval.ErrInvalidArguments, "defineVariable: '%s' is already defined", name)
	}

	value := input
	if len(args) > 1 {
		if v, ok := args[1].(types.Collection); ok {
			value = v
		}
	}
	ctx.SetVariable(name, value)

	return input, nil
}

// fnTrace logs the input collection and returns it unchanged.
// Uses structured logging for production observability.
func fnTrace(_ *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	if len(args) == 0 {
		return nil, eval.InvalidArgumentsError("trace", 1, 0)
	}

	name := ""
	if n, ok := toStringArg(args[0]); ok {
		name = n
	}

	entry := TraceEntry{
		Timestamp: time.Now(),
		Name:      name,
		Input:     collectionToInterface(input),
		Count:     len(input),
	}

	// If a projection is provided, include it
	if len(args) > 1 {
		if result, ok := args[1].(types.Collection); ok {
			entry.Projection = collectionToInterface(result)
		}
	}

	// Log using the configured logger
	GetTraceLogger().Log(entry)

	return input, nil
}

// collectionToInterface converts a Collection to a slice of interface{} for JSON serialization.
func collectionToInterface(col types.Collection) interface{} {
	if col.Empty() {
		return []interface{}{}
	}
	result := make([]interface{}, len(col))
	for i, item := range col {
		result[i] = item.String()
	}
	return result
}

// fnNow returns the current date and time.
func fnNow(_ *eval.Context, _ types.Collection, _ []interface{}) (types.Collection, error) {
	now := time.Now()
	dt, err := types.NewDateTime(now.Format("2006-01-02T15:04:05.000-07:00"))
	if err != nil {
		return types.Collection{}, nil
	}
	return types.Collection{dt}, nil
}

// fnToday returns the current date.
func fnToday(_ *eval.Context, _ types.Collection, _ []interface{}) (types.Collection, error) {
	now := time.Now()
	d, err := types.NewDate(now.Format("2006-01-02"))
	if err != nil {
		return types.Collection{}, nil
	}
	return types.Collection{d}, nil
}

// fnTimeOfDay returns the current time.
func fnTimeOfDay(_ *eval.Context, _ types.Collection, _ []interface{}) (types.Collection, error) {
	now := time.Now()
	t, err := types.NewTime(now.Format("15:04:05.000"))
	if err != nil {
		return types.Collection{}, nil
	}
	return types.Collection{t}, nil
}
