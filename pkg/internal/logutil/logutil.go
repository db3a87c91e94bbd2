package logutil

import (
    "encoding/json"
    "fmt"
    "log"
    "os"
    "strings"
    "sync/atomic"
    "time"
)

// Level orders log severities.
type Level int32

const (
    LevelDebug Level = iota
    LevelInfo
    LevelWarn
    LevelError
)

var (
    jsonMode atomic.Bool
    minLevel atomic.Int32
)

func init() {
    if os.Getenv("CLUSTER_LOG_JSON") == "1" || os.Getenv("CLUSTER_LOG_FORMAT") == "json" {
        jsonMode.Store(true)
    }
    minLevel.Store(int32(LevelInfo))
    if v := os.Getenv("CLUSTER_LOG_LEVEL"); v != "" {
        if l, err := ParseLevel(v); err == nil { minLevel.Store(int32(l)) }
    }
}

// ParseLevel accepts debug, info, warn(ing) and error.
func ParseLevel(s string) (Level, error) {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "debug":
        return LevelDebug, nil
    case "info", "":
        return LevelInfo, nil
    case "warn", "warning":
        return LevelWarn, nil
    case "error":
        return LevelError, nil
    }
    return LevelInfo, fmt.Errorf("logutil: unknown level %q", s)
}

func (l Level) String() string {
    switch l {
    case LevelDebug:
        return "debug"
    case LevelWarn:
        return "warn"
    case LevelError:
        return "error"
    default:
        return "info"
    }
}

func SetJSON(enabled bool) { jsonMode.Store(enabled) }
func SetLevel(l Level)     { minLevel.Store(int32(l)) }

func Debugf(l *log.Logger, f string, args ...any) { logf(l, LevelDebug, f, args...) }
func Infof(l *log.Logger, f string, args ...any)  { logf(l, LevelInfo, f, args...) }
func Warnf(l *log.Logger, f string, args ...any)  { logf(l, LevelWarn, f, args...) }
func Errorf(l *log.Logger, f string, args ...any) { logf(l, LevelError, f, args...) }

func logf(l *log.Logger, level Level, f string, args ...any) {
    if int32(level) < minLevel.Load() { return }
    if l == nil { l = log.Default() }
    msg := fmt.Sprintf(f, args...)
    if jsonMode.Load() {
        b, _ := json.Marshal(map[string]any{
            "ts":    time.Now().UTC().Format(time.RFC3339Nano),
            "level": level.String(),
            "msg":   msg,
        })
        l.Println(string(b))
        return
    }
    l.Println(strings.ToUpper(level.String()) + " " + msg)
}
