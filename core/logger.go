package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel orders log severities.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// String returns the upper-case level name used in log output.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts "debug", "info", "warn"/"warning" and "error"
// (case-insensitive) to a LogLevel. Unknown values map to LogLevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// ProductionLogger writes structured (json) or human-readable (text) logs.
// Every entry carries the service name and the component that emitted it.
type ProductionLogger struct {
	level          LogLevel
	serviceName    string
	component      string
	format         string
	timeFormat     string
	output         io.Writer
	metricsEnabled bool

	mu *sync.Mutex
}

// NewProductionLogger creates a logger from the logging and development
// configuration. Development debug logging forces the debug level and
// pretty logs force the text format.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	level := ParseLogLevel(logging.Level)
	if dev.DebugLogging {
		level = LogLevelDebug
	}

	format := strings.ToLower(logging.Format)
	if dev.PrettyLogs {
		format = "text"
	}
	if format != "json" && format != "text" {
		format = "json"
	}

	var output io.Writer = os.Stdout
	if strings.EqualFold(logging.Output, "stderr") {
		output = os.Stderr
	}

	timeFormat := logging.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}

	return &ProductionLogger{
		level:       level,
		serviceName: serviceName,
		component:   "framework/core",
		format:      format,
		timeFormat:  timeFormat,
		output:      output,
		mu:          &sync.Mutex{},
	}
}

// WithComponent returns a copy of the logger tagged with component.
// The copy shares the output writer and its lock with the parent.
func (p *ProductionLogger) WithComponent(component string) Logger {
	child := *p
	child.component = component
	if child.mu == nil {
		child.mu = &sync.Mutex{}
	}
	return &child
}

// SetOutput redirects log output, mostly useful in tests.
func (p *ProductionLogger) SetOutput(w io.Writer) {
	p.output = w
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.log(LogLevelInfo, msg, fields)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.log(LogLevelWarn, msg, fields)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.log(LogLevelError, msg, fields)
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	p.log(LogLevelDebug, msg, fields)
}

func (p *ProductionLogger) log(level LogLevel, msg string, fields map[string]interface{}) {
	if level < p.level || p.output == nil {
		return
	}

	timestamp := time.Now().Format(p.timeFormatOrDefault())

	var line string
	if p.format == "text" {
		line = p.formatText(timestamp, level, msg, fields)
	} else {
		line = p.formatJSON(timestamp, level, msg, fields)
	}

	if p.mu != nil {
		p.mu.Lock()
		defer p.mu.Unlock()
	}
	fmt.Fprintln(p.output, line)
}

func (p *ProductionLogger) timeFormatOrDefault() string {
	if p.timeFormat == "" {
		return time.RFC3339Nano
	}
	return p.timeFormat
}

func (p *ProductionLogger) formatJSON(timestamp string, level LogLevel, msg string, fields map[string]interface{}) string {
	entry := map[string]interface{}{
		"timestamp": timestamp,
		"level":     level.String(),
		"service":   p.serviceName,
		"component": p.component,
		"message":   msg,
	}
	for k, v := range fields {
		switch k {
		case "timestamp", "level", "service", "component", "message":
			continue
		}
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		entry[k] = v
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Sprintf(`{"level":"ERROR","message":"log marshal failed","error":%q}`, err.Error())
	}
	return string(data)
}

func (p *ProductionLogger) formatText(timestamp string, level LogLevel, msg string, fields map[string]interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%s:%s] %s", timestamp, level.String(), p.serviceName, p.component, msg)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}
