// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log wraps zap's sugared logger behind a small package-level API,
// so call sites don't need to thread a logger instance through every
// function.
package log

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu      sync.RWMutex
	sugared = mustBuild()
)

func mustBuild() *zap.SugaredLogger {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return l.Sugar()
}

// SetLogger replaces the global logger. Used by tests to install an
// observable logger.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	sugared = l.Sugar()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugared
}

// Fields is a set of structured key/value pairs to attach to a log entry.
type Fields map[string]interface{}

// With returns a child logger with the given alternating key/value pairs
// attached to every subsequent entry.
func With(args ...interface{}) *zap.SugaredLogger {
	return current().With(args...)
}

// WithFields returns a child logger with fields attached to every
// subsequent entry.
func WithFields(fields Fields) *zap.SugaredLogger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return current().With(args...)
}

// Debug logs args at debug level.
func Debug(args ...interface{}) { current().Debug(args...) }

// Debugf logs a formatted message at debug level.
func Debugf(template string, args ...interface{}) { current().Debugf(template, args...) }

// Info logs args at info level.
func Info(args ...interface{}) { current().Info(args...) }

// Infof logs a formatted message at info level.
func Infof(template string, args ...interface{}) { current().Infof(template, args...) }

// Warn logs args at warn level.
func Warn(args ...interface{}) { current().Warn(args...) }

// Warnf logs a formatted message at warn level.
func Warnf(template string, args ...interface{}) { current().Warnf(template, args...) }

// Error logs args at error level.
func Error(args ...interface{}) { current().Error(args...) }

// Errorf logs a formatted message at error level.
func Errorf(template string, args ...interface{}) { current().Errorf(template, args...) }

// Fatal logs args at fatal level then calls os.Exit(1).
func Fatal(args ...interface{}) { current().Fatal(args...) }

// Fatalf logs a formatted message at fatal level then calls os.Exit(1).
func Fatalf(template string, args ...interface{}) { current().Fatalf(template, args...) }
