package telemetry

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// Sink receives status snapshots
type Sink interface {
	Publish(ctx context.Context, s Snapshot) error
	Close() error
}

// Fanout publishes to every sink and combines their errors.
// One failing sink does not stop the others.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, s Snapshot) error {
	var err error
	for _, sink := range f {
		err = multierr.Append(err, sink.Publish(ctx, s))
	}
	return err
}

func (f Fanout) Close() error {
	var err error
	for _, sink := range f {
		err = multierr.Append(err, sink.Close())
	}
	return err
}

// LogSink writes snapshots as structured log entries
type LogSink struct {
	logger *logrus.Logger
	level  logrus.Level
}

// NewLogSink logs snapshots at level
func NewLogSink(logger *logrus.Logger, level logrus.Level) *LogSink {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogSink{logger: logger, level: level}
}

func (l *LogSink) Publish(_ context.Context, s Snapshot) error {
	fields := logrus.Fields{}
	om := s.Ordered()
	for p := om.Oldest(); p != nil; p = p.Next() {
		if p.Key == "time" {
			continue
		}
		fields[p.Key] = p.Value
	}
	l.logger.WithFields(fields).Log(l.level, "Status")
	return nil
}

func (l *LogSink) Close() error { return nil }
