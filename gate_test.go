package restproxy

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractToken(t *testing.T) {
	token := Synchronize(nil)
	other := Synchronize(nil)

	assert.Nil(t, ExtractToken(nil))
	assert.Nil(t, ExtractToken([]any{"a", 1, (*Synchronized)(nil)}))
	assert.Same(t, token, ExtractToken([]any{"a", token, other}))
}

func TestWithLock_NilTokenRunsDirectly(t *testing.T) {
	ran := false
	err := WithLock(nil, func() error {
		ran = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, ran)
}

func TestWithLock_Excludes(t *testing.T) {
	token := Synchronize(nil)
	var mu sync.Mutex
	inside, overlap := 0, false

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = WithLock(token, func() error {
				mu.Lock()
				inside++
				overlap = overlap || inside > 1
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.False(t, overlap)
}

func TestNonceFactory_StrictlyIncreasing(t *testing.T) {
	f := NewNonceFactory()
	fixed := time.UnixMilli(1_700_000_000_000)
	f.now = func() time.Time { return fixed }

	assert.Equal(t, int64(1_700_000_000_000), f.CreateValue())
	assert.Equal(t, int64(1_700_000_000_001), f.CreateValue())

	f.now = func() time.Time { return fixed.Add(time.Second) }
	assert.Equal(t, int64(1_700_000_001_000), f.CreateValue())
}

func TestSynchronized_NilFactory(t *testing.T) {
	assert.Nil(t, Synchronize(nil).CreateValue())
}
