// Package singleflight coalesces concurrent calls for the same key into a
// single execution whose result is shared by every caller.
package singleflight

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// PanicError is returned to every caller when the shared function panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("singleflight: function panicked: %v", p.Value)
}

// call is an in-flight or settled execution.
type call[V any] struct {
	done chan struct{}
	val  V
	err  error

	// guarded by Group.mu
	waiters int
	dups    int

	cancel context.CancelFunc
}

// Group deduplicates concurrent work by key. The zero value is ready to use.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

// Do runs fn for key unless a call for key is already in flight, in which
// case it waits for that call and returns its result. shared reports
// whether the result was delivered to more than one caller.
//
// fn runs with a context that keeps ctx's values but is only cancelled once
// every attached caller has given up. A caller whose ctx ends returns
// ctx.Err() without affecting the others.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func(ctx context.Context) (V, error)) (v V, err error, shared bool) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		c.waiters++
		c.dups++
		g.mu.Unlock()
		return g.wait(ctx, key, c)
	}

	opCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &call[V]{
		done:    make(chan struct{}),
		waiters: 1,
		cancel:  cancel,
	}
	g.m[key] = c
	g.mu.Unlock()

	go g.run(opCtx, key, c, fn)
	return g.wait(ctx, key, c)
}

func (g *Group[K, V]) run(ctx context.Context, key K, c *call[V], fn func(ctx context.Context) (V, error)) {
	defer func() {
		if r := recover(); r != nil {
			var zero V
			c.val = zero
			c.err = &PanicError{Value: r, Stack: debug.Stack()}
		}

		g.mu.Lock()
		if g.m[key] == c {
			delete(g.m, key)
		}
		g.mu.Unlock()

		c.cancel()
		close(c.done)
	}()

	c.val, c.err = fn(ctx)
}

func (g *Group[K, V]) wait(ctx context.Context, key K, c *call[V]) (V, error, bool) {
	select {
	case <-c.done:
		g.mu.Lock()
		shared := c.dups > 0
		g.mu.Unlock()
		return c.val, c.err, shared
	case <-ctx.Done():
	}

	g.mu.Lock()
	c.waiters--
	abandoned := c.waiters == 0
	if abandoned && g.m[key] == c {
		delete(g.m, key)
	}
	shared := c.dups > 0
	g.mu.Unlock()

	if abandoned {
		c.cancel()
	}

	var zero V
	return zero, ctx.Err(), shared
}

// Forget drops the in-flight record for key so the next Do starts a fresh
// call. Callers already waiting still receive the original result.
func (g *Group[K, V]) Forget(key K) {
	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
}

// InFlight returns the number of keys with a pending call.
func (g *Group[K, V]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}

// Pending reports whether a call for key is in flight.
func (g *Group[K, V]) Pending(key K) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.m[key]
	return ok
}
