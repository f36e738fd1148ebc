// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package logx is the small structured-logging seam the rest of this repo
// codes against, the same way the teacher's File held a *log.Helper behind
// "github.com/saferwall/pe/log" rather than importing a backend directly
// everywhere. The backend here is logrus.
package logx

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Fields is a set of structured key/value pairs attached to a log line.
type Fields map[string]interface{}

// Logger is the minimal logging surface components depend on.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	WithFields(f Fields) Logger
}

// Helper wraps a Logger the way teacher code stored *log.Helper on File;
// it exists so call sites read "logger.Errorf(...)" regardless of backend.
type Helper struct {
	Logger
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New builds a Logger from the BND_WINMD_LOG environment variable, the
// analogue of spec §6's RUST_LOG=bnd_winmd=debug convention. Accepted
// values are the usual level names (trace, debug, info, warn, error);
// anything unrecognised, including an unset variable, defaults to info.
func New() *Helper {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(parseLevel(os.Getenv("BND_WINMD_LOG")))
	return &Helper{Logger: &logrusLogger{entry: logrus.NewEntry(l)}}
}

// NewSilent returns a Logger that discards everything, for tests that do
// not want log noise but still need to satisfy the Logger dependency.
func NewSilent() *Helper {
	l := logrus.New()
	l.SetOutput(discard{})
	return &Helper{Logger: &logrusLogger{entry: logrus.NewEntry(l)}}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func parseLevel(v string) logrus.Level {
	// BND_WINMD_LOG may carry a "target=level" filter form, as RUST_LOG does
	// (e.g. "bnd_winmd=debug"); only the level portion matters here since
	// this tool has a single logical target.
	if i := strings.IndexByte(v, '='); i >= 0 {
		v = v[i+1:]
	}
	lvl, err := logrus.ParseLevel(strings.TrimSpace(v))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusLogger) WithFields(f Fields) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(f))}
}
