// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package watch implements the polling engine: fetch an ordered snapshot of
// post IDs, diff it against the previous one, dispatch a handler per new
// post, sleep, repeat.
package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.astrophena.name/pumpkin/internal/stream"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultBackoff      = 2 * time.Second
)

// Snapshot fetches the current ordered sequence of post IDs for a watched
// stream, oldest first.
type Snapshot func(ctx context.Context) ([]int64, error)

// Handler processes one newly detected post.
//
// Handlers are expected to be total: catch internal failures, post a single
// best-effort error reply when an action can't be completed, and skip posts
// that already carry the auto-reply marker. A returned error is logged and
// dropped; it never affects the loop or sibling handlers.
type Handler interface {
	HandlePost(ctx context.Context, postID int64) error
}

// HandlerFunc adapts a function to the [Handler] interface.
type HandlerFunc func(ctx context.Context, postID int64) error

// HandlePost calls f(ctx, postID).
func (f HandlerFunc) HandlePost(ctx context.Context, postID int64) error {
	return f(ctx, postID)
}

// Watcher continuously polls one stream and dispatches its handler for every
// newly appeared post. The zero intervals default to 2 seconds.
type Watcher struct {
	Name         string
	Snapshot     Snapshot
	Handler      Handler
	PollInterval time.Duration
	Backoff      time.Duration
	Logger       *slog.Logger

	known []int64 // snapshot of the last successful poll, replaced wholesale
	wg    sync.WaitGroup
}

// Run polls until ctx is cancelled. A fetch failure is logged and backed
// off, never propagated; the previous snapshot stays valid. Run waits for
// in-flight handlers before returning.
func (w *Watcher) Run(ctx context.Context) error {
	poll := w.PollInterval
	if poll == 0 {
		poll = defaultPollInterval
	}
	backoff := w.Backoff
	if backoff == 0 {
		backoff = defaultBackoff
	}

	defer w.wg.Wait()

	for {
		cur, err := w.Snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Logger.Error("fetch failed", "watcher", w.Name, "error", err)
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
			continue
		}

		// New posts are dispatched in the order they appear in the fresh
		// snapshot. Handlers run unsupervised: the loop neither waits for
		// them nor cares whether they fail.
		for _, id := range stream.Diff(w.known, cur) {
			w.dispatch(ctx, id)
		}
		w.known = cur

		if err := sleep(ctx, poll); err != nil {
			return err
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, id int64) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				w.Logger.Error("handler panicked", "watcher", w.Name, "post", id, "panic", p)
			}
		}()
		if err := w.Handler.HandlePost(ctx, id); err != nil {
			w.Logger.Error("handler failed", "watcher", w.Name, "post", id, "error", err)
		}
	}()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
