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

package skifftest

import (
	"context"
	"fmt"

	"github.com/skiff-dev/skiff"
)

// Lifespan is a live lifespan session: the dispatcher's lifespan state
// machine running against in-memory channels. Use Startup and Shutdown to
// drive it; Err reports how the state machine exited.
type Lifespan struct {
	signals chan skiff.Message
	acks    chan skiff.Message
	done    chan error
}

// Lifespan starts a lifespan session against the app. The state machine
// runs until a shutdown signal completes, it fails, or ctx is canceled.
func (c *Client) Lifespan(ctx context.Context) *Lifespan {
	l := &Lifespan{
		signals: make(chan skiff.Message),
		acks:    make(chan skiff.Message, 2),
		done:    make(chan error, 1),
	}

	scope := skiff.Scope{Type: skiff.ScopeLifespan}
	receive := func(ctx context.Context) (skiff.Message, error) {
		select {
		case msg := <-l.signals:
			return msg, nil
		case <-ctx.Done():
			return skiff.Message{}, ctx.Err()
		}
	}
	send := func(ctx context.Context, msg skiff.Message) error {
		l.acks <- msg
		return nil
	}

	go func() {
		l.done <- c.app.Handle(ctx, scope, receive, send)
	}()
	return l
}

// Startup sends the startup signal and waits for the completion
// acknowledgement. A startup handler failure is returned as the state
// machine's exit error.
func (l *Lifespan) Startup(ctx context.Context) error {
	return l.signal(ctx, skiff.MessageLifespanStartup, skiff.MessageLifespanStartupComplete)
}

// Shutdown sends the shutdown signal and waits for the completion
// acknowledgement.
func (l *Lifespan) Shutdown(ctx context.Context) error {
	return l.signal(ctx, skiff.MessageLifespanShutdown, skiff.MessageLifespanShutdownComplete)
}

// Err waits for the state machine to exit and returns its error.
func (l *Lifespan) Err(ctx context.Context) error {
	select {
	case err := <-l.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Lifespan) signal(ctx context.Context, signal, wantAck string) error {
	select {
	case l.signals <- skiff.Message{Type: signal}:
	case err := <-l.done:
		return fmt.Errorf("lifespan exited before signal: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case ack := <-l.acks:
		if ack.Type != wantAck {
			return fmt.Errorf("expected %s, got %s", wantAck, ack.Type)
		}
		return nil
	case err := <-l.done:
		if err != nil {
			return err
		}
		// Clean exit: the acknowledgement may already be queued.
		select {
		case ack := <-l.acks:
			if ack.Type != wantAck {
				return fmt.Errorf("expected %s, got %s", wantAck, ack.Type)
			}
			return nil
		default:
			return fmt.Errorf("lifespan exited without %s", wantAck)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
