package pg

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/tracelog"

	"github.com/stayware/identity-context-service/infra/x/logx"
)

func debugLog(logger *slog.Logger) pgx.QueryTracer {
	if !logx.Debug("postgres", "db") {
		return nil
	}
	stdlog := logx.ModuleLogger("postgres", logger)
	return &tracelog.TraceLog{
		Config: &tracelog.TraceLogConfig{
			TimeKey: "time",
		},
		LogLevel: tracelog.LogLevelTrace,
		Logger: tracelog.LoggerFunc(func(ctx context.Context, v tracelog.LogLevel, event string, data map[string]interface{}) {
			level := slogLevel(v)
			if v >= tracelog.LogLevelInfo {
				level = slog.LevelDebug
			}
			// reduce slogAttrs() convertion
			if !stdlog.Enabled(ctx, level) {
				return
			}
			stdlog.LogAttrs(ctx, level, event, slogAttrs(data)...)
		}),
	}
}

// converts [github.com/jackc/pgx/v5/tracelog.LogLevel] to [log/slog.Level]
func slogLevel(v tracelog.LogLevel) slog.Level {

	// LogLevelTrace = LogLevel(6)
	// LogLevelDebug = LogLevel(5)
	// LogLevelInfo  = LogLevel(4)
	// LogLevelWarn  = LogLevel(3)
	// LogLevelError = LogLevel(2)
	// LogLevelNone  = LogLevel(1) // FATAL

	return slog.Level((tracelog.LogLevelInfo - v) * 4)
}

// https://opentelemetry.io/docs/specs/semconv/database/sql/
func slogAttrs(data map[string]any) []slog.Attr {
	n := len(data)
	if n == 0 {
		return nil
	}
	var (
		i int
		m = make([]slog.Attr, n)
	)
	for key, value := range data {
		switch key {
		case "err": // error
			key = "error"
		case "sql": // string
			key = "db.query.text"
		case "args": // []any
			key = "db.query.params"
		case "commandTag": // string
			key = "db.query.tag"
			tag := value.(string)
			op, n := tag, len(tag)
			for i := n - 1; i >= 0; i-- {
				if '0' <= op[i] && op[i] <= '9' {
					n = i
				} else {
					break
				}
			}
			value = strings.TrimSpace(op[:n])
			if n < len(tag) {
				c, _ := strconv.ParseUint(tag[n:], 10, 64)
				m = append(m, slog.Attr{
					Key:   "db.query.rows",
					Value: slog.Uint64Value(c),
				})
			}
		}
		e := &m[i]
		e.Key = key
		e.Value = slogValue(value)
		i++
	}
	return m
}

func slogValue(v any) slog.Value {
	switch e := v.(type) {
	case error:
		return slog.StringValue(e.Error())
	case bool:
		return slog.BoolValue(e)
	case int:
		return slog.IntValue(e)
	case int64:
		return slog.Int64Value(e)
	case uint64:
		return slog.Uint64Value(e)
	case string:
		return slog.StringValue(e)
	case float64:
		return slog.Float64Value(e)
	case time.Time:
		return slog.TimeValue(e)
	case time.Duration:
		return slog.StringValue(
			e.Round(time.Millisecond).String(),
		)
	case pgx.NamedArgs:
		return slog.StringValue(fmt.Sprintf(
			"%v", (map[string]any)(e),
		))
	case slog.Value:
		return e
	}
	return slog.AnyValue(v)
}
