// Copyright 2025 The Skiff Authors
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

package skiff

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Option defines functional options for app configuration.
type Option func(*App)

// WithTitle sets the application title, used in startup logging.
func WithTitle(title string) Option {
	return func(a *App) { a.title = title }
}

// WithVersion sets the application version string.
func WithVersion(version string) Option {
	return func(a *App) { a.version = version }
}

// WithDebug enables debug mode. Debug mode only affects log verbosity;
// error responses never expose internal detail regardless.
func WithDebug(debug bool) Option {
	return func(a *App) { a.debug = debug }
}

// WithLogger sets the structured logger used by the dispatcher and the
// built-in exception boundary. Defaults to a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithTracer enables per-request tracing: one span per dispatched HTTP
// request, named after the method and matched route pattern.
func WithTracer(tracer trace.Tracer) Option {
	return func(a *App) { a.tracer = tracer }
}

// WithServerTimeouts configures the timeouts of the HTTP server started by
// Serve. All values must be positive; validation happens in New.
func WithServerTimeouts(readHeader, read, write, idle time.Duration) Option {
	return func(a *App) {
		a.serverTimeouts = &serverTimeouts{
			readHeader: readHeader,
			read:       read,
			write:      write,
			idle:       idle,
		}
	}
}

// serverTimeouts holds HTTP server timeout configuration.
type serverTimeouts struct {
	readHeader time.Duration
	read       time.Duration
	write      time.Duration
	idle       time.Duration
}

// validate rejects non-positive timeout values.
func (t *serverTimeouts) validate() error {
	for _, d := range []time.Duration{t.readHeader, t.read, t.write, t.idle} {
		if d <= 0 {
			return fmt.Errorf("%w: got %v", ErrServerTimeoutInvalid, d)
		}
	}
	return nil
}

// defaultServerTimeouts returns production-safe defaults guarding against
// slow clients holding connections open.
func defaultServerTimeouts() *serverTimeouts {
	return &serverTimeouts{
		readHeader: 10 * time.Second,
		read:       30 * time.Second,
		write:      60 * time.Second,
		idle:       120 * time.Second,
	}
}
