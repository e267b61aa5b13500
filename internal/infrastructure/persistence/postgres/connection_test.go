package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDialerDefaultsZeroTimeout(t *testing.T) {
	d := NewDialer("postgres://localhost:5432/app", 0)
	assert.Equal(t, DefaultConfig().DialTimeout, d.dialTimeout)

	d = NewDialer("postgres://localhost:5432/app", -time.Second)
	assert.Equal(t, DefaultConfig().DialTimeout, d.dialTimeout)
}

func TestNewDialerKeepsExplicitTimeout(t *testing.T) {
	d := NewDialer("postgres://localhost:5432/app", 3*time.Second)
	assert.Equal(t, 3*time.Second, d.dialTimeout)
}

func TestConfigNormalizeFillsDialTimeout(t *testing.T) {
	c := Config{URL: "postgres://localhost:5432/app"}.normalize()
	assert.Equal(t, DefaultConfig().DialTimeout, c.DialTimeout)
}
