// Package observability is the logging and tracing facade injected into every
// layer of the service. Providers live in subpackages (zap, noop, fake).
package observability

import (
	"fmt"
	"time"
)

// Observability gives access to the logger and tracer of a provider.
type Observability interface {
	Tracer() Tracer
	Logger() Logger
}

// Field is a key-value pair used both as a log field and as a span attribute.
type Field struct {
	Key   string
	Value any
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float64 field.
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Error creates a field under the "error" key.
func Error(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any creates a field with any value type.
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// StringValue renders a field value as text. Nil errors render as an empty string.
func (f Field) StringValue() string {
	switch v := f.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case error:
		return v.Error()
	case time.Duration:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
