// Package balancer spreads exchanges across several hosts serving the same API.
package balancer

import (
	"context"
	"math/rand"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-thor/restproxy/errors"
	"github.com/go-thor/restproxy/transport"
)

// Strategy picks one of n endpoints
type Strategy interface {
	Select(n int) int
}

// RoundRobin cycles through the endpoints in order
type RoundRobin struct {
	next atomic.Uint64
}

// Select returns the next index
func (b *RoundRobin) Select(n int) int {
	return int((b.next.Add(1) - 1) % uint64(n))
}

// Random picks a uniformly random endpoint
type Random struct {
	mu   sync.Mutex
	rand *rand.Rand
}

// NewRandom creates a random strategy
func NewRandom() *Random {
	return &Random{rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Select returns a random index
func (b *Random) Select(n int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rand.Intn(n)
}

// Balancer rewrites the scheme and host of outgoing requests to one of its endpoints
type Balancer struct {
	strategy Strategy

	mu        sync.RWMutex
	endpoints []*url.URL
}

// New creates a balancer over endpoints, each a scheme://host[:port] base.
// A nil strategy means round robin.
func New(strategy Strategy, endpoints ...string) (*Balancer, error) {
	if strategy == nil {
		strategy = &RoundRobin{}
	}
	b := &Balancer{strategy: strategy}
	if err := b.Update(endpoints...); err != nil {
		return nil, err
	}
	return b, nil
}

// Update replaces the endpoint set
func (b *Balancer) Update(endpoints ...string) error {
	parsed := make([]*url.URL, 0, len(endpoints))
	for _, e := range endpoints {
		u, err := url.Parse(e)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.Configuration("balancer: invalid endpoint %q", e)
		}
		parsed = append(parsed, u)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.endpoints = parsed
	return nil
}

// Endpoints returns the current endpoint set
func (b *Balancer) Endpoints() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.endpoints))
	for i, u := range b.endpoints {
		out[i] = u.String()
	}
	return out
}

func (b *Balancer) pick() (*url.URL, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.endpoints) == 0 {
		return nil, errors.New(errors.KindTransport, "balancer: no endpoints available")
	}
	return b.endpoints[b.strategy.Select(len(b.endpoints))], nil
}

// Middleware returns the transport middleware
func (b *Balancer) Middleware() transport.Middleware {
	return func(next transport.SendFunc) transport.SendFunc {
		return func(ctx context.Context, req *transport.Request) (transport.Handle, error) {
			target, err := url.Parse(req.URL)
			if err != nil {
				return nil, errors.Transport(err, "balancer: parse request url")
			}
			endpoint, err := b.pick()
			if err != nil {
				return nil, err
			}
			target.Scheme = endpoint.Scheme
			target.Host = endpoint.Host

			out := req.Clone()
			out.URL = target.String()
			return next(ctx, out)
		}
	}
}
