package record

import (
	"context"
	"strconv"
	"time"

	"github.com/opentracing/opentracing-go"
	tracerLog "github.com/opentracing/opentracing-go/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// EasyRecorders traces, logs failures and observes latency of every action.
func EasyRecorders(desc string, logger *zap.Logger, registerer prometheus.Registerer, factory ...Factory) Factory {
	fs := chainFactory{}
	fs = append(fs, NewTracerFactory(nil))
	fs = append(fs, NewLoggerRecorderFactory(logger, false, desc))
	fs = append(fs, NewPromRecorderFactory(registerer, desc))
	fs = append(fs, factory...)
	return fs
}

type PromFactory struct {
	fields map[string]bool
	hv     *prometheus.HistogramVec
}

// NewPromRecorderFactory registers a histogram named name on registerer.
// Registering the same name twice reuses the first histogram.
func NewPromRecorderFactory(registerer prometheus.Registerer, name string, fields ...string) *PromFactory {
	fields = append(fields, "err", "name")

	fs := make(map[string]bool)
	for _, f := range fields {
		fs[f] = true
	}

	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    name,
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
	}, fields)

	if registerer != nil {
		if err := registerer.Register(hv); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return &PromFactory{}
			}
			hv = are.ExistingCollector.(*prometheus.HistogramVec)
		}
	}

	return &PromFactory{
		fields: fs,
		hv:     hv,
	}
}

func (factory *PromFactory) ActionRecorder(ctx context.Context, name string, fields ...Field) (Recorder, context.Context) {
	if factory.hv == nil {
		return skipRecorder{}, ctx
	}
	return &PromRecorder{
		fields:    fields,
		factory:   factory,
		startTime: time.Now(),
		name:      name,
	}, ctx
}

func (factory *PromFactory) buildLabel(name string, err error, fields []Field) prometheus.Labels {
	lbs := prometheus.Labels{}
	for f := range factory.fields {
		lbs[f] = ""
	}
	lbs["err"] = strconv.FormatBool(err != nil)
	lbs["name"] = name
	for _, f := range fields {
		if factory.fields[f.Name] {
			lbs[f.Name] = f.StringValue()
		}
	}
	return lbs
}

func (factory *PromFactory) commit(startTime time.Time, labels prometheus.Labels) {
	factory.hv.With(labels).Observe(time.Since(startTime).Seconds())
}

type PromRecorder struct {
	fields    []Field
	factory   *PromFactory
	startTime time.Time
	name      string
}

func (recorder *PromRecorder) Commit(err error, fields ...Field) {
	labels := recorder.factory.buildLabel(recorder.name, err, append(recorder.fields, fields...))
	recorder.factory.commit(recorder.startTime, labels)
}

type LoggerFactory struct {
	logger      *zap.Logger
	recordNoErr bool
	desc        string
}

func NewLoggerRecorderFactory(logger *zap.Logger, recordNoErr bool, messageDesc string) *LoggerFactory {
	return &LoggerFactory{
		logger:      logger,
		recordNoErr: recordNoErr,
		desc:        messageDesc,
	}
}

func (factory *LoggerFactory) ActionRecorder(ctx context.Context, name string, fields ...Field) (Recorder, context.Context) {
	logger := factory.logger
	if logger == nil {
		logger = zap.L()
	}
	return LoggerRecorder{
		fields:    fields,
		factory:   factory,
		logger:    logger,
		startTime: time.Now(),
		name:      name,
	}, ctx
}

func (factory *LoggerFactory) commit(logger *zap.Logger, name string, startTime time.Time, err error, fields []Field) {
	if err == nil && !factory.recordNoErr {
		return
	}

	fs := make([]zap.Field, 0, len(fields)+4)
	if err != nil {
		fs = append(fs, zap.Error(err))
	}
	fs = append(fs, zap.String("name", name))
	fs = append(fs, zap.Duration("duration", time.Since(startTime)))
	fs = append(fs, zap.Time("startTime", startTime))
	for _, f := range fields {
		fs = append(fs, zap.String(f.Name, f.StringValue()))
	}

	if err == nil {
		logger.Info(factory.desc, fs...)
	} else {
		logger.Error(factory.desc, fs...)
	}
}

type LoggerRecorder struct {
	fields    []Field
	factory   *LoggerFactory
	logger    *zap.Logger
	startTime time.Time
	name      string
}

func (recorder LoggerRecorder) Commit(err error, fields ...Field) {
	recorder.factory.commit(recorder.logger, recorder.name, recorder.startTime, err, append(recorder.fields, fields...))
}

type TracerFactory struct {
	tracer opentracing.Tracer
}

// NewTracerFactory uses the global tracer when tracer is nil.
func NewTracerFactory(tracer opentracing.Tracer) *TracerFactory {
	return &TracerFactory{
		tracer: tracer,
	}
}

func (factory *TracerFactory) ActionRecorder(ctx context.Context, name string, fields ...Field) (Recorder, context.Context) {
	tracer := factory.tracer
	if tracer == nil {
		tracer = opentracing.GlobalTracer()
	}

	opt := tracerOption{
		startTime: time.Now(),
		fields:    fields,
	}
	span, ctx := opentracing.StartSpanFromContextWithTracer(ctx, tracer, name, opt)
	return TracerRecorder{
		span: span,
	}, ctx
}

type TracerRecorder struct {
	span opentracing.Span
}

func (recorder TracerRecorder) Commit(err error, fields ...Field) {
	if err != nil {
		recorder.span.SetTag("err", true)
		recorder.span.LogFields(tracerLog.Error(err))
	}
	for _, f := range fields {
		recorder.span.SetTag(f.Name, f.Value())
	}
	recorder.span.Finish()
}

type tracerOption struct {
	startTime time.Time
	fields    []Field
}

func (opt tracerOption) Apply(options *opentracing.StartSpanOptions) {
	options.StartTime = opt.startTime
	if options.Tags == nil {
		options.Tags = map[string]interface{}{}
	}
	for _, f := range opt.fields {
		options.Tags[f.Name] = f.Value()
	}
}
