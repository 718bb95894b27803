// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package discourse

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// gate is the single serialization point every outbound request passes
// through. Turns are granted in strict arrival order (a chain of channels,
// each closed by its holder when done), and a token-bucket limiter with
// burst 1 keeps consecutive requests at least minInterval apart.
type gate struct {
	limiter *rate.Limiter

	mu   sync.Mutex
	tail chan struct{} // turn of the most recent arrival; nil before the first
}

func newGate(minInterval time.Duration) *gate {
	return &gate{limiter: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// enter blocks until it is the caller's turn and the cooldown has elapsed.
// The returned leave func must be called on every exit path, success or not,
// or every later caller deadlocks.
func (g *gate) enter(ctx context.Context) (leave func(), err error) {
	turn := make(chan struct{})

	g.mu.Lock()
	prev := g.tail
	g.tail = turn
	g.mu.Unlock()

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			// We abandoned our place in line, but our successor is already
			// waiting on turn. It may only proceed once our predecessor is
			// done, so hand the turn over asynchronously.
			go func() {
				<-prev
				close(turn)
			}()
			return nil, ctx.Err()
		}
	}

	if err := g.limiter.Wait(ctx); err != nil {
		close(turn)
		return nil, err
	}

	return func() { close(turn) }, nil
}
