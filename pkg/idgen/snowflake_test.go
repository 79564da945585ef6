package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnowflakeWorkerRange(t *testing.T) {
	_, err := NewSnowflake(-1)
	assert.Error(t, err)
	_, err = NewSnowflake(maxWorkerID + 1)
	assert.Error(t, err)

	s, err := NewSnowflake(maxWorkerID)
	require.NoError(t, err)
	assert.Positive(t, s.Generate())
}

func TestGenerateUniqueAndIncreasing(t *testing.T) {
	s, err := NewSnowflake(3)
	require.NoError(t, err)

	prev := int64(0)
	for i := 0; i < 10000; i++ {
		id := s.Generate()
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestGenerateConcurrent(t *testing.T) {
	s, err := NewSnowflake(7)
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]struct{})
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				id := s.Generate()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 8000)
}

func TestNumberFormats(t *testing.T) {
	acc := GenerateAccountID()
	assert.True(t, strings.HasPrefix(acc, "ACC"))
	assert.Len(t, acc, 3+8+19)

	txn := GenerateTransactionNo()
	assert.True(t, strings.HasPrefix(txn, "TXN"))
	assert.Len(t, txn, 3+14+19)

	assert.NotEqual(t, GenerateTransactionNo(), GenerateTransactionNo())
}
