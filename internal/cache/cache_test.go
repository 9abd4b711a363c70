// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cache

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_GetOr(t *testing.T) {
	t.Run("computes the value once per key", func(t *testing.T) {
		m := New[string, int]()

		var calls int
		compute := func() (int, error) {
			calls++
			return 42, nil
		}

		v, err := m.GetOr("k", compute)
		require.NoError(t, err)
		assert.Equal(t, 42, v)

		v, err = m.GetOr("k", compute)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
		assert.Equal(t, 1, calls)
	})

	t.Run("does not memoize failed computations", func(t *testing.T) {
		m := New[string, int]()

		computeErr := errors.New("compute failed")
		_, err := m.GetOr("k", func() (int, error) {
			return 0, computeErr
		})
		require.ErrorIs(t, err, computeErr)

		v, err := m.GetOr("k", func() (int, error) {
			return 7, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	})

	t.Run("concurrent lookups of one key observe one computation", func(t *testing.T) {
		m := New[string, int]()

		var calls int
		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()

				v, err := m.GetOr("k", func() (int, error) {
					calls++
					return 1, nil
				})
				assert.NoError(t, err)
				assert.Equal(t, 1, v)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, calls)
	})
}
