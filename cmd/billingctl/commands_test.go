package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/bizflow/backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommandsRegistered(t *testing.T) {
	var names []string
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"renewals", "retries", "status-sweep", "trial-reminders", "access", "migrate", "token", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCmd(t *testing.T) {
	old := Version
	defer func() { Version = old }()
	Version = "1.2.3"

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "billingctl 1.2.3")
}

func TestAccessRequiresValidID(t *testing.T) {
	_, err := execute(t, "access")
	assert.Error(t, err)

	_, err = execute(t, "access", "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid business id")
}

func TestSweepRejectsArgs(t *testing.T) {
	_, err := execute(t, "renewals", "extra")
	assert.Error(t, err)

	// aliases resolve to the same command
	_, err = execute(t, "renew", "extra")
	assert.Error(t, err)
}

func TestTokenCmd(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test-secret")

	out, err := execute(t, "token", "ops@bizflow.test", "--ttl", "10m")
	require.NoError(t, err)

	claims, err := utils.ValidateToken("cli-test-secret", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, "ops@bizflow.test", claims.Email)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), time.Unix(claims.ExpiresAt, 0), time.Minute)
}
