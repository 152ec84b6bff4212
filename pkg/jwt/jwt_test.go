package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	m := NewManager("secret", time.Hour)

	token, exp, err := m.Generate("wallet-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	sub, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "wallet-1", sub)
}

func TestParseRejects(t *testing.T) {
	m := NewManager("secret", time.Hour)
	token, _, err := m.Generate("wallet-1")
	require.NoError(t, err)

	_, err = NewManager("other", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewManager("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = expired.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Parse("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
