package cmd

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vircadia/assetd/internal/configuration"
	"github.com/vircadia/assetd/internal/dcontext"
)

const defaultLogFormatter = "text"

// configureLogging sets up logrus per config and returns a context carrying
// any static fields configured under log.fields, grounded on the teacher's
// configureLogging in registry/registry.go. The teacher's "logstash"
// formatter is dropped: its dependency (logrus-logstash-hook) was never
// pulled into this module since nothing else in the domain stack needs it.
func configureLogging(ctx dcontext.Context, config *configuration.Configuration) (dcontext.Context, error) {
	logrus.SetLevel(logLevel(config.Log.Level))

	formatter := config.Log.Formatter
	if formatter == "" {
		formatter = defaultLogFormatter
	}

	switch formatter {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:   time.RFC3339Nano,
			DisableHTMLEscape: true,
		})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	default:
		return ctx, fmt.Errorf("unsupported logging formatter: %q", formatter)
	}

	logrus.Debugf("using %q logging formatter", formatter)

	if len(config.Log.Fields) > 0 {
		var fields []any
		for k := range config.Log.Fields {
			fields = append(fields, k)
		}

		ctx = dcontext.WithValues(ctx, config.Log.Fields)
		ctx = dcontext.WithLogger(ctx, dcontext.GetLogger(ctx, fields...))
	}

	dcontext.SetDefaultLogger(dcontext.GetLogger(ctx))
	return ctx, nil
}

func logLevel(level configuration.Loglevel) logrus.Level {
	l, err := logrus.ParseLevel(string(level))
	if err != nil {
		l = logrus.InfoLevel
		logrus.Warnf("error parsing level %q: %v, using %q", level, err, l)
	}
	return l
}
