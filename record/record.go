// Package record times boundary actions and reports them to logs,
// metrics and traces.
package record

import (
	"context"
	"fmt"
	"strconv"
)

type Recorder interface {
	Commit(err error, fields ...Field)
}

type Factory interface {
	ActionRecorder(ctx context.Context, name string, fields ...Field) (Recorder, context.Context)
}

type Field struct {
	Name  string
	value interface{}
}

func StringField(name string, value string) Field {
	return Field{Name: name, value: value}
}

func IntField(name string, value int) Field {
	return Field{Name: name, value: value}
}

func BoolField(name string, value bool) Field {
	return Field{Name: name, value: value}
}

func (f Field) Value() interface{} {
	return f.value
}

func (f Field) StringValue() string {
	switch v := f.value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func ChainFactory(factories ...Factory) Factory {
	return chainFactory(factories)
}

type chainFactory []Factory

func (cf chainFactory) ActionRecorder(ctx context.Context, name string, fields ...Field) (Recorder, context.Context) {
	records := make(chainRecorder, 0, len(cf))
	for _, f := range cf {
		var rd Recorder
		rd, ctx = f.ActionRecorder(ctx, name, fields...)
		records = append(records, rd)
	}
	return records, ctx
}

type chainRecorder []Recorder

func (cr chainRecorder) Commit(err error, fields ...Field) {
	for _, rd := range cr {
		rd.Commit(err, fields...)
	}
}

// Do runs do under a recorder named actionName. A nil factory just runs do.
func Do(ctx context.Context, factory Factory, actionName string, do func(ctx context.Context) error, fields ...Field) error {
	if factory == nil {
		return do(ctx)
	}
	var rd Recorder
	rd, ctx = factory.ActionRecorder(ctx, actionName, fields...)
	err := do(ctx)
	rd.Commit(err)
	return err
}

type skipRecorder struct{}

func (recorder skipRecorder) Commit(err error, fields ...Field) {}
