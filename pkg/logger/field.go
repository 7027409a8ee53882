package logger

import (
	"time"

	"github.com/rs/zerolog"
)

type fieldKind uint8

const (
	kindString fieldKind = iota
	kindInt
	kindFloat
	kindBool
	kindTime
	kindError
	kindAny
)

// Field is one structured key/value pair attached to a log entry.
type Field struct {
	key  string
	kind fieldKind
	str  string
	num  int64
	flt  float64
	tm   time.Time
	err  error
	val  any
}

func String(key, v string) Field { return Field{key: key, kind: kindString, str: v} }
func Int(key string, v int) Field { return Field{key: key, kind: kindInt, num: int64(v)} }
func Int64(key string, v int64) Field { return Field{key: key, kind: kindInt, num: v} }
func Float64(key string, v float64) Field { return Field{key: key, kind: kindFloat, flt: v} }
func Time(key string, v time.Time) Field { return Field{key: key, kind: kindTime, tm: v} }
func Any(key string, v any) Field { return Field{key: key, kind: kindAny, val: v} }

func Bool(key string, v bool) Field {
	f := Field{key: key, kind: kindBool}
	if v {
		f.num = 1
	}
	return f
}

// Error logs err under the "error" key.
func Error(err error) Field { return Field{key: zerolog.ErrorFieldName, kind: kindError, err: err} }

// Duration logs d in whole milliseconds.
func Duration(key string, d time.Duration) Field { return Int64(key, d.Milliseconds()) }

// Key returns the field name.
func (f Field) Key() string { return f.key }

// Value returns the field value as it is aggregated by the collector.
func (f Field) Value() any {
	switch f.kind {
	case kindString:
		return f.str
	case kindInt:
		return f.num
	case kindFloat:
		return f.flt
	case kindBool:
		return f.num == 1
	case kindTime:
		return f.tm
	case kindError:
		if f.err == nil {
			return nil
		}
		return f.err.Error()
	}
	return f.val
}

func (f Field) applyEvent(e *zerolog.Event) {
	switch f.kind {
	case kindString:
		e.Str(f.key, f.str)
	case kindInt:
		e.Int64(f.key, f.num)
	case kindFloat:
		e.Float64(f.key, f.flt)
	case kindBool:
		e.Bool(f.key, f.num == 1)
	case kindTime:
		e.Time(f.key, f.tm)
	case kindError:
		e.AnErr(f.key, f.err)
	default:
		e.Interface(f.key, f.val)
	}
}

func (f Field) applyContext(c zerolog.Context) zerolog.Context {
	switch f.kind {
	case kindString:
		return c.Str(f.key, f.str)
	case kindInt:
		return c.Int64(f.key, f.num)
	case kindFloat:
		return c.Float64(f.key, f.flt)
	case kindBool:
		return c.Bool(f.key, f.num == 1)
	case kindTime:
		return c.Time(f.key, f.tm)
	case kindError:
		return c.AnErr(f.key, f.err)
	}
	return c.Interface(f.key, f.val)
}
