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
	"context"
	"fmt"
)

// LifecycleFunc is a startup or shutdown handler. Handlers run strictly
// sequentially: each is awaited to completion before the next begins.
type LifecycleFunc func(ctx context.Context) error

// OnStartup registers a handler to run when the lifespan startup signal
// arrives. Handlers run in registration order; a failure aborts the
// sequence and propagates out of the lifespan state machine.
//
// OnStartup panics after the app has started serving.
func (a *App) OnStartup(fn LifecycleFunc) {
	a.checkFrozen()
	a.startup = append(a.startup, fn)
}

// OnShutdown registers a handler to run when the lifespan shutdown signal
// arrives. Handlers run in reverse registration order (LIFO), mirroring
// resource acquisition: what started last shuts down first.
//
// OnShutdown panics after the app has started serving.
func (a *App) OnShutdown(fn LifecycleFunc) {
	a.checkFrozen()
	a.shutdown = append(a.shutdown, fn)
}

// runStartup executes every startup handler strictly sequentially in
// registration order. The first failure aborts the sequence.
func (a *App) runStartup(ctx context.Context) error {
	for i, fn := range a.startup {
		if err := fn(ctx); err != nil {
			return fmt.Errorf("startup handler %d failed: %w", i, err)
		}
		a.logger.Debug("startup handler complete", "index", i)
	}
	return nil
}

// runShutdown executes every shutdown handler strictly sequentially in
// reverse registration order. The first failure aborts the sequence.
func (a *App) runShutdown(ctx context.Context) error {
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil {
			return fmt.Errorf("shutdown handler %d failed: %w", i, err)
		}
		a.logger.Debug("shutdown handler complete", "index", i)
	}
	return nil
}
