package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionValidator_DecaysOnFailureAndRestoresOnSuccess(t *testing.T) {
	v := NewSessionValidator(1, map[time.Duration]int{time.Second: 1000})
	require.Equal(t, int64(permitCeiling), v.Permits())

	require.NoError(t, v.Validate(false))
	assert.Less(t, v.Permits(), int64(permitCeiling))

	before := v.Permits()
	require.NoError(t, v.Validate(true))
	assert.Greater(t, v.Permits(), before)
}

func TestSessionValidator_DecayFloorsAtPermitFloor(t *testing.T) {
	v := NewSessionValidator(2, map[time.Duration]int{time.Second: 1000})
	for i := 0; i < 64; i++ {
		require.NoError(t, v.Validate(false))
	}
	assert.Equal(t, int64(permitFloor), v.Permits())
}

func TestSessionValidator_RestoreCeilsAtPermitCeiling(t *testing.T) {
	v := NewSessionValidator(3, map[time.Duration]int{time.Second: 1000})
	for i := 0; i < 10; i++ {
		require.NoError(t, v.Validate(true))
	}
	assert.Equal(t, int64(permitCeiling), v.Permits())
}

func TestSessionValidator_CanHandleNextSessionInitTask(t *testing.T) {
	v := NewSessionValidator(4, map[time.Duration]int{time.Second: 1000})
	assert.True(t, v.canHandleNextSessionInitTask())

	v.permits.Store(0)
	assert.False(t, v.canHandleNextSessionInitTask())
}

func TestSessionValidator_SaturatedLimiterReturnsError(t *testing.T) {
	v := NewSessionValidator(5, map[time.Duration]int{time.Second: 1})
	require.NoError(t, v.Validate(true))
	err := v.Validate(true)
	assert.ErrorIs(t, err, ErrValidatorSaturated)
	assert.False(t, v.canHandleNextSessionInitTask())
}
