package parallel

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
}

func TestForBatch(t *testing.T) {
	cfg := DefaultConfig()

	batch, channels := 4, 8
	results := make([][]bool, batch)
	for b := range results {
		results[b] = make([]bool, channels)
	}

	ForBatch(batch, channels, func(b, c int) {
		results[b][c] = true
	}, cfg)

	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			assert.True(t, results[b][c], "missing result at [%d][%d]", b, c)
		}
	}
}

func TestForBatch_ZeroChannels(t *testing.T) {
	called := false
	ForBatch(3, 0, func(_, _ int) { called = true }, DefaultConfig())
	assert.False(t, called)
}

func TestFor_Sequential(t *testing.T) {
	var counter int64
	For(100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, Sequential())

	assert.Equal(t, int64(100), counter)
}

func TestFor_SmallChunk(t *testing.T) {
	// Small work units fall back to sequential.
	cfg := DefaultConfig()

	var counter int64
	n := cfg.MinChunkSize - 1

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
}

func TestForErr(t *testing.T) {
	boom := errors.New("boom")
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}

	t.Run("all succeed", func(t *testing.T) {
		seen := make([]int32, 256)
		err := ForErr(len(seen), func(i int) error {
			atomic.AddInt32(&seen[i], 1)
			return nil
		}, cfg)
		require.NoError(t, err)
		for i, v := range seen {
			assert.Equal(t, int32(1), v, "index %d", i)
		}
	})

	t.Run("first error is returned", func(t *testing.T) {
		err := ForErr(256, func(i int) error {
			if i == 17 {
				return boom
			}
			return nil
		}, cfg)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("other chunks stop after an error", func(t *testing.T) {
		// Two chunks: [0, 100) fails on its first item, [100, 200) waits for
		// that failure before moving past its first item.
		failed := make(chan struct{})
		var late int32
		err := ForErr(200, func(i int) error {
			switch {
			case i == 0:
				close(failed)
				return boom
			case i == 100:
				<-failed
				time.Sleep(100 * time.Millisecond)
			case i > 100:
				atomic.AddInt32(&late, 1)
			}
			return nil
		}, Config{Enabled: true, NumWorkers: 2, MinChunkSize: 1})
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, atomic.LoadInt32(&late))
	})

	t.Run("sequential stops at first error", func(t *testing.T) {
		var calls int
		err := ForErr(10, func(i int) error {
			calls++
			if i == 3 {
				return boom
			}
			return nil
		}, Sequential())
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 4, calls)
	})
}

func BenchmarkFor(b *testing.B) {
	cfg := DefaultConfig()
	n := 10000

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, Sequential())
		}
	})
}
