package keygen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnowflakeGenerator_InvalidMachineID(t *testing.T) {
	_, err := NewSnowflakeGenerator(Config{MachineID: -1})
	assert.Error(t, err)

	_, err = NewSnowflakeGenerator(Config{MachineID: MaxMachineID + 1})
	assert.Error(t, err)
}

func TestGenerate_MinLength(t *testing.T) {
	g, err := NewSnowflakeGenerator(Config{MachineID: 1, MinLength: 7})
	require.NoError(t, err)

	code, err := g.Generate()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(code), 7)
}

func TestGenerate_Unique(t *testing.T) {
	g, err := NewSnowflakeGenerator(Config{MachineID: 1})
	require.NoError(t, err)

	const n = 10000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		_, dup := seen[code]
		require.False(t, dup, "duplicate code %q", code)
		seen[code] = struct{}{}
	}
}

func TestGenerate_UniqueConcurrent(t *testing.T) {
	g, err := NewSnowflakeGenerator(Config{MachineID: 2})
	require.NoError(t, err)

	const workers = 8
	const perWorker = 500

	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				code, err := g.Generate()
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				seen[code] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}
