package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	p := NewWorkerPool(nil, nil, 1, 5, 10*time.Second)

	t.Run("Doubles per attempt", func(t *testing.T) {
		assert.Equal(t, 10*time.Second, p.Backoff(1))
		assert.Equal(t, 20*time.Second, p.Backoff(2))
		assert.Equal(t, 40*time.Second, p.Backoff(3))
		assert.Equal(t, 80*time.Second, p.Backoff(4))
	})
}
