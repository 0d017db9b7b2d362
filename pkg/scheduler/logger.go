package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/JailtonJunior94/observable-service/pkg/observability"
)

// cronLogger routes robfig/cron logs to the observability logger.
type cronLogger struct {
	logger observability.Logger
}

func newCronLogger(logger observability.Logger) cron.Logger {
	return &cronLogger{logger: logger}
}

// Info is called by cron for every schedule tick; keep it at debug.
func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(context.Background(), msg, toFields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := append(toFields(keysAndValues), observability.Error(err))
	l.logger.Error(context.Background(), msg, fields...)
}

func toFields(keysAndValues []any) []observability.Field {
	fields := make([]observability.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		switch v := keysAndValues[i+1].(type) {
		case string:
			fields = append(fields, observability.String(key, v))
		case int:
			fields = append(fields, observability.Int(key, v))
		case error:
			fields = append(fields, observability.String(key, v.Error()))
		default:
			fields = append(fields, observability.String(key, fmt.Sprintf("%v", v)))
		}
	}
	return fields
}
