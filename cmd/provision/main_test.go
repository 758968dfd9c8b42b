package main

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestProvisionCommandDefaults(t *testing.T) {
	cmd := newProvisionCommand()
	flags := cmd.PersistentFlags()

	registry, err := flags.GetString("registry")
	assert.NilError(t, err)
	assert.Check(t, is.Equal(registry, "https://registry-1.docker.io"))

	authServer, err := flags.GetString("auth-server")
	assert.NilError(t, err)
	assert.Check(t, is.Equal(authServer, "https://auth.docker.io/token"))

	timeout, err := flags.GetDuration("timeout")
	assert.NilError(t, err)
	assert.Check(t, is.Equal(timeout, 10*time.Second))
}

func TestProvisionCommandSubcommands(t *testing.T) {
	cmd := newProvisionCommand()
	for _, name := range []string{"manifest", "pull", "blob"} {
		sub, _, err := cmd.Find([]string{name})
		assert.NilError(t, err)
		assert.Check(t, is.Equal(sub.Name(), name))
	}
}

func TestNewClientRejectsBadRegistry(t *testing.T) {
	opts := &clientOptions{registry: "not a url", authServer: defaultAuthServer}
	_, err := opts.newClient()
	assert.Check(t, err != nil)
}
