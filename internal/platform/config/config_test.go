package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromViper_Defaults(t *testing.T) {
	c := FromViper(newViper())

	assert.Equal(t, "8080", c.APIPort)
	assert.Equal(t, 72*time.Hour, c.JWTExp)
	assert.Equal(t, "contest:approval_lock", c.ApprovalLockKey)
	assert.Equal(t, 30*time.Second, c.ApprovalLockTTL())
	assert.Equal(t, time.Minute, c.StatusCacheTTL())
	assert.Contains(t, c.DBConnStr, "dbname=proconnect")
}

func TestFromViper_EnvOverrides(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("PHASE_TICK_SECONDS", "5")
	t.Setenv("ENV", "PROD")

	c := FromViper(newViper())

	assert.Equal(t, "9090", c.APIPort)
	assert.Equal(t, 5*time.Second, c.PhaseTick())
	assert.Equal(t, "prod", c.Env)
}
