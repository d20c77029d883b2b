package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = [...]string{DEBUG: "DEBUG", INFO: "INFO", WARN: "WARN", ERROR: "ERROR"}

func (l Level) String() string { return levelNames[l] }

// Format формат строки лога
type Format int

const (
	// FormatText "[ts] [LEVEL] msg | k=v"
	FormatText Format = iota
	// FormatJSON одна JSON строка на запись, для сборщиков логов
	FormatJSON
)

const timeLayout = "2006-01-02 15:04:05"

// Logger логгер с уровнем и постоянными полями.
// Дочерние логгеры из With делят writer и его mutex.
type Logger struct {
	sink   *sink
	level  Level
	format Format
	fields []any
}

type sink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWithOutput текстовый logger в произвольный writer
func NewWithOutput(level string, out io.Writer) *Logger {
	return NewWithFormat(level, "text", out)
}

// NewWithFormat format "json" или "text"; неизвестное значение дает text
func NewWithFormat(level, format string, out io.Writer) *Logger {
	return &Logger{
		sink:   &sink{out: out},
		level:  parseLevel(level),
		format: parseFormat(format),
	}
}

// Nop ничего не пишет
func Nop() *Logger {
	return NewWithOutput("error", io.Discard)
}

func parseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func parseFormat(format string) Format {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return FormatJSON
	}
	return FormatText
}

// With возвращает дочерний logger с постоянными полями
func (l *Logger) With(args ...any) *Logger {
	child := *l
	child.fields = append(append(make([]any, 0, len(l.fields)+len(args)), l.fields...), args...)
	return &child
}

func (l *Logger) Debug(msg string, args ...any) { l.write(DEBUG, msg, args) }
func (l *Logger) Info(msg string, args ...any)  { l.write(INFO, msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.write(WARN, msg, args) }

func (l *Logger) Error(msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	l.write(ERROR, msg, args)
}

func (l *Logger) write(level Level, msg string, args []any) {
	if level < l.level {
		return
	}

	kv := args
	if len(l.fields) > 0 {
		kv = append(append(make([]any, 0, len(l.fields)+len(args)), l.fields...), args...)
	}

	var line string
	if l.format == FormatJSON {
		line = jsonLine(level, msg, kv)
	} else {
		line = textLine(level, msg, kv)
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	_, _ = io.WriteString(l.sink.out, line+"\n")
}

func textLine(level Level, msg string, kv []any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s", time.Now().Format(timeLayout), level, msg)
	if len(kv) > 1 {
		b.WriteString(" |")
	}
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%s", kv[i], textValue(kv[i+1]))
	}
	return b.String()
}

func textValue(v any) string {
	s := fmt.Sprint(v)
	if strings.ContainsAny(s, " \t\n\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

func jsonLine(level Level, msg string, kv []any) string {
	entry := make(map[string]any, len(kv)/2+3)
	for i := 0; i+1 < len(kv); i += 2 {
		entry[fmt.Sprint(kv[i])] = kv[i+1]
	}
	// Служебные ключи не перетираются полями
	entry["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["msg"] = msg

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Sprintf(`{"level":%q,"msg":%q,"log_error":%q}`, level, msg, err.Error())
	}
	return string(data)
}
