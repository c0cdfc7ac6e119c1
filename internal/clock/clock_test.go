package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	// 20:30 UTC is already the next day in Seoul.
	at := time.Date(2026, 3, 9, 20, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), DateOf(at, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), DateOf(at, seoul))
	assert.Equal(t, DateOf(at, time.UTC), DateOf(at, nil))
}

func TestFixed(t *testing.T) {
	c := &Fixed{At: time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC)}
	assert.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), c.Today())

	c.Advance(2 * time.Hour)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), c.Today())
	assert.Equal(t, time.Date(2026, 2, 1, 1, 0, 0, 0, time.UTC), c.Now())
}
