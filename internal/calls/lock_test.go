package calls

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "k1")
	require.NoError(t, err)

	_, err = l.Lock(ctx, "k1")
	assert.ErrorIs(t, err, ErrLocked)

	other, err := l.Lock(ctx, "k2")
	require.NoError(t, err)
	other()

	unlock()
	unlock()

	again, err := l.Lock(ctx, "k1")
	require.NoError(t, err)
	again()
}
