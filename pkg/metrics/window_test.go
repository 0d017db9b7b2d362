package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleWindow(t *testing.T) {
	t.Run("empty window reports zero", func(t *testing.T) {
		w := NewSampleWindow(3)

		assert.Equal(t, 0, w.Len())
		assert.Zero(t, w.Average())
		assert.Zero(t, w.Percentile(95))
		assert.Empty(t, w.Values())
	})

	t.Run("evicts oldest samples once full", func(t *testing.T) {
		w := NewSampleWindow(3)
		for _, v := range []float64{1, 2, 3, 4, 5} {
			w.Add(v)
		}

		assert.Equal(t, 3, w.Len())
		assert.Equal(t, []float64{3, 4, 5}, w.Values())
		assert.InDelta(t, 4.0, w.Average(), 1e-9)
	})

	t.Run("non-positive size falls back to default", func(t *testing.T) {
		w := NewSampleWindow(0)
		for i := 0; i < DefaultWindowSize+10; i++ {
			w.Add(float64(i))
		}
		assert.Equal(t, DefaultWindowSize, w.Len())
	})

	t.Run("nearest rank percentile", func(t *testing.T) {
		w := NewSampleWindow(100)
		for i := 100; i >= 1; i-- {
			w.Add(float64(i))
		}

		assert.Equal(t, 1.0, w.Percentile(0))
		assert.Equal(t, 50.0, w.Percentile(50))
		assert.Equal(t, 95.0, w.Percentile(95))
		assert.Equal(t, 100.0, w.Percentile(100))
	})

	t.Run("concurrent adds are all kept", func(t *testing.T) {
		w := NewSampleWindow(1000)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					w.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 500, w.Len())
		assert.Equal(t, 1.0, w.Average())
	})
}
