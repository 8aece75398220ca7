package e2e

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionStatus struct {
	Kind   string `json:"kind"`
	UserID string `json:"user_id"`
}

func TestGuestConversionSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)
	require.NoError(t, writeDataFixture(home))

	guest := status(t, binaryPath, home)
	assert.Equal(t, "anonymous", guest.Kind)

	stdout, stderr, err := runPF(t, binaryPath, home, "task", "start", "t1")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Started attempt")

	stdout, stderr, err = runPF(t, binaryPath, home,
		"session", "convert",
		"--email", "smoke@example.com",
		"--password", "pw-smoke-1",
	)
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "user_task_attempts")
	assert.Contains(t, stdout, "migration complete")

	account := status(t, binaryPath, home)
	assert.Equal(t, "authenticated", account.Kind)
	assert.NotEqual(t, guest.UserID, account.UserID)

	stdout, stderr, err = runPF(t, binaryPath, home, "task", "attempts")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "task t1")
}

func status(t *testing.T, binaryPath, home string) sessionStatus {
	t.Helper()

	stdout, stderr, err := runPF(t, binaryPath, home, "session", "status", "--json")
	require.NoError(t, err, "stderr: %s", stderr)

	var out sessionStatus
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	return out
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "pf-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/pf")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build pf binary: %s", string(output))
	return binaryPath
}

func runPF(t *testing.T, binaryPath, home string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home, "PF_CONFIG=", "PF_REMOTE_URL=", "PF_BACKEND=")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

func writeDataFixture(home string) error {
	dir := filepath.Join(home, ".pathfinder")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data := `version = 1

[[tables.tasks]]
id = "t1"
title = "Hello, world"
difficulty = "easy"
total_steps = 3
`

	return os.WriteFile(filepath.Join(dir, "data.toml"), []byte(data), 0o600)
}
