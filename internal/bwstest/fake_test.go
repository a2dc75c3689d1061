package bwstest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bwscache/bwscache/internal/invoker"
)

const token = "test-token"

func run(t *testing.T, f *FakeCLI, args ...string) invoker.Result {
	t.Helper()
	res, err := f.Run(context.Background(), "bws", append(args, "--color", "no", "--access-token", token))
	require.NoError(t, err)
	return res
}

func TestFakeCLI_ProjectAndSecretLifecycle(t *testing.T) {
	f := NewFakeCLI(token)
	pid := f.AddProject("infra")

	res := run(t, f, "secret", "create", "API_KEY", "abc123", pid, "--output", "json")
	require.Zero(t, res.ExitCode, string(res.Output))
	var created Record
	require.NoError(t, json.Unmarshal(res.Output, &created))
	assert.Equal(t, "API_KEY", created.Key)
	assert.Equal(t, pid, created.ProjectID)

	res = run(t, f, "secret", "edit", created.ID, "--value", "def456", "--output", "json")
	require.Zero(t, res.ExitCode)
	var edited Record
	require.NoError(t, json.Unmarshal(res.Output, &edited))
	assert.Equal(t, created.ID, edited.ID)
	assert.Equal(t, "def456", edited.Value)

	res = run(t, f, "secret", "list", pid, "--output", "json")
	var listed []Record
	require.NoError(t, json.Unmarshal(res.Output, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "def456", listed[0].Value)

	res = run(t, f, "secret", "delete", created.ID)
	require.Zero(t, res.ExitCode)
	assert.Equal(t, "1 secret deleted successfully.\n", string(res.Output))
	assert.Empty(t, f.Secrets(pid))

	res = run(t, f, "secret", "delete", created.ID)
	assert.Equal(t, 1, res.ExitCode)
}

func TestFakeCLI_RejectsWrongToken(t *testing.T) {
	f := NewFakeCLI(token)

	res, err := f.Run(context.Background(), "bws", []string{"project", "list", "--access-token", "nope"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
}

func TestFakeCLI_FailNextAndOverride(t *testing.T) {
	f := NewFakeCLI(token)
	f.AddProject("infra")
	f.FailNext("project list", 1, "Error: rate limited")

	res := run(t, f, "project", "list")
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "Error: rate limited", string(res.Output))

	res = run(t, f, "project", "list")
	assert.Zero(t, res.ExitCode)

	f.Override("project list", "not json")
	res = run(t, f, "project", "list")
	assert.Equal(t, "not json", string(res.Output))
}

func TestFakeCLI_UnknownCommand(t *testing.T) {
	f := NewFakeCLI(token)

	res := run(t, f, "frobnicate")
	assert.Equal(t, 2, res.ExitCode)
}

func TestFakeCLI_HelpAndVersion(t *testing.T) {
	f := NewFakeCLI(token)

	assert.Equal(t, HelpText, string(run(t, f, "-h").Output))
	assert.Equal(t, Version+"\n", string(run(t, f, "-V").Output))
}

func TestFakeCLI_CallCount(t *testing.T) {
	f := NewFakeCLI(token)
	pid := f.AddProject("infra")

	run(t, f, "project", "list")
	run(t, f, "secret", "list", pid)
	run(t, f, "secret", "list", pid)

	assert.Equal(t, 1, f.CallCount("project list"))
	assert.Equal(t, 2, f.CallCount("secret list"))
	assert.Len(t, f.Calls(), 3)
}

func TestFakeCLI_CancelledContext(t *testing.T) {
	f := NewFakeCLI(token)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.Run(ctx, "bws", []string{"project", "list", "--access-token", token})
	require.NoError(t, err)
	assert.Equal(t, -1, res.ExitCode)
}
