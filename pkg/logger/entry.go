package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

const componentKey = "component"

// LogEntry is one line of JSON log output. Attributes logged inside a group
// are nested under the group name in Fields.
type LogEntry struct {
	Level     string         `json:"level"`
	Timestamp string         `json:"timestamp"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
	Caller    string         `json:"caller,omitempty"`
}

// lineWriter serializes whole lines from every handler derived from one logger.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) writeLine(line []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.w.Write(line)
	return err
}

// entryHandler is a slog.Handler writing one LogEntry per record. Attributes
// bound with WithAttrs are folded into fields once, at bind time.
type entryHandler struct {
	out       *lineWriter
	level     slog.Level
	addSource bool

	component string
	fields    map[string]any
	group     []string
}

func newEntryHandler(w io.Writer, level slog.Level, addSource bool) *entryHandler {
	return &entryHandler{
		out:       &lineWriter{w: w},
		level:     level,
		addSource: addSource,
		fields:    map[string]any{},
	}
}

func (h *entryHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *entryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}

	next := *h
	next.fields = cloneFields(h.fields)
	for _, attr := range attrs {
		if component, ok := insertAttr(next.fields, next.group, attr); ok {
			next.component = component
		}
	}

	return &next
}

func (h *entryHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	next := *h
	next.group = append(append([]string{}, h.group...), name)
	return &next
}

func (h *entryHandler) Handle(_ context.Context, record slog.Record) error {
	fields := cloneFields(h.fields)
	component := h.component
	record.Attrs(func(attr slog.Attr) bool {
		if c, ok := insertAttr(fields, h.group, attr); ok {
			component = c
		}
		return true
	})

	at := record.Time
	if at.IsZero() {
		at = time.Now()
	}

	entry := LogEntry{
		Level:     strings.ToLower(record.Level.String()),
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		Component: component,
		Message:   record.Message,
	}
	if len(fields) > 0 {
		entry.Fields = fields
	}
	if h.addSource {
		entry.Caller = caller(record.PC)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode log entry: %w", err)
	}

	return h.out.writeLine(append(line, '\n'))
}

// insertAttr stores attr under the group path. A top-level string component
// attribute is reported instead of stored.
func insertAttr(fields map[string]any, group []string, attr slog.Attr) (string, bool) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return "", false
	}

	if len(group) == 0 && attr.Key == componentKey && attr.Value.Kind() == slog.KindString {
		return attr.Value.String(), true
	}

	target := fields
	for _, name := range group {
		child, ok := target[name].(map[string]any)
		if !ok {
			child = map[string]any{}
			target[name] = child
		}
		target = child
	}

	setField(target, attr)
	return "", false
}

// setField stores attr in target. Groups without a key are inlined.
func setField(target map[string]any, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	if attr.Value.Kind() == slog.KindGroup && attr.Key == "" {
		for _, member := range attr.Value.Group() {
			setField(target, member)
		}
		return
	}

	target[attr.Key] = jsonValue(attr.Value)
}

func jsonValue(value slog.Value) any {
	switch value.Kind() {
	case slog.KindGroup:
		members := map[string]any{}
		for _, member := range value.Group() {
			setField(members, member)
		}
		return members
	case slog.KindTime:
		return value.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindDuration:
		return value.Duration().String()
	case slog.KindAny:
		switch v := value.Any().(type) {
		case error:
			return v.Error()
		case json.Marshaler:
			return v
		case fmt.Stringer:
			return v.String()
		default:
			return v
		}
	default:
		return value.Any()
	}
}

// cloneFields copies fields and every nested group map.
func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		if nested, ok := value.(map[string]any); ok {
			out[key] = cloneFields(nested)
			continue
		}
		out[key] = value
	}

	return out
}

func caller(pc uintptr) string {
	if pc == 0 {
		return ""
	}

	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.File == "" {
		return ""
	}

	return filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line)
}
