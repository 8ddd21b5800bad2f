package restproxy

import (
	"sync"
	"time"
)

// ValueFactory produces a value that must be generated atomically with
// respect to other calls sharing the same token, such as a nonce.
type ValueFactory interface {
	CreateValue() any
}

// ValueFactoryFunc adapts a function to ValueFactory
type ValueFactoryFunc func() any

// CreateValue calls f
func (f ValueFactoryFunc) CreateValue() any {
	return f()
}

// Synchronized is a synchronization token. Calls that receive the same
// *Synchronized argument build and send their requests one at a time. When
// it is bound to a parameter, the argument is replaced by the factory's value,
// created while the token is held.
type Synchronized struct {
	mu      sync.Mutex
	factory ValueFactory
}

// Synchronize creates a token around factory. factory may be nil for a pure lock.
func Synchronize(factory ValueFactory) *Synchronized {
	return &Synchronized{factory: factory}
}

// CreateValue returns the factory's next value. Callers must hold the token.
func (s *Synchronized) CreateValue() any {
	if s.factory == nil {
		return nil
	}
	return s.factory.CreateValue()
}

// ExtractToken returns the first *Synchronized argument, or nil when the call
// shares no token and needs no exclusion.
func ExtractToken(args []any) *Synchronized {
	for _, arg := range args {
		if s, ok := arg.(*Synchronized); ok && s != nil {
			return s
		}
	}
	return nil
}

// WithLock runs fn while holding token. A nil token runs fn directly.
func WithLock(token *Synchronized, fn func() error) error {
	if token == nil {
		return fn()
	}
	token.mu.Lock()
	defer token.mu.Unlock()
	return fn()
}

// NonceFactory produces strictly increasing nonces based on the current time in milliseconds
type NonceFactory struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewNonceFactory creates a nonce factory
func NewNonceFactory() *NonceFactory {
	return &NonceFactory{now: time.Now}
}

// CreateValue returns the next nonce as an int64
func (f *NonceFactory) CreateValue() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.now().UnixMilli()
	if n <= f.last {
		n = f.last + 1
	}
	f.last = n
	return n
}
