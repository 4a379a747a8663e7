package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestRunShell_ExitAfter(t *testing.T) {
	var stdout, stderr bytes.Buffer
	start := time.Now()
	code, err := runShell(runOptions{
		exitAfter: 50 * time.Millisecond,
		stdinFD:   -1,
		stdout:    &stdout,
		stderr:    &stderr,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Contains(t, stderr.String(), `browsershell: running`)
	assert.Contains(t, stderr.String(), `browsershell: exit timer fired`)
	assert.Contains(t, stderr.String(), `browsershell: exiting`)
}

func TestRunShell_Heartbeat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "browsershell.toml")
	require.NoError(t, os.WriteFile(path, []byte("[shell]\nheartbeat = \"10ms\"\n[log]\nlevel = \"debug\"\n"), 0644))

	var stdout, stderr bytes.Buffer
	code, err := runShell(runOptions{
		configPath: path,
		exitAfter:  100 * time.Millisecond,
		stdinFD:    -1,
		stdout:     &stdout,
		stderr:     &stderr,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.GreaterOrEqual(t, strings.Count(stderr.String(), `browsershell: heartbeat`), 2)
	assert.Contains(t, stderr.String(), `browsershell: torn down`)
	assert.Contains(t, stderr.String(), `"timers_live"`)
}

func TestRunShell_WatchStdin(t *testing.T) {
	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	t.Cleanup(func() { _ = unix.Close(fds[0]) })

	_, err := unix.Write(fds[1], []byte("about:blank\nhttps://example.com\ntrailing"))
	require.NoError(t, err)
	require.NoError(t, unix.Close(fds[1]))

	var stdout, stderr bytes.Buffer
	code, err := runShell(runOptions{
		exitAfter: 200 * time.Millisecond,
		stdinFD:   fds[0],
		stdout:    &stdout,
		stderr:    &stderr,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "line 1: about:blank\nline 2: https://example.com\nline 3: trailing\n", stdout.String())
	assert.Contains(t, stderr.String(), `browsershell: stdin closed`)
}

func TestRunShell_QuitSignal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "browsershell.toml")
	require.NoError(t, os.WriteFile(path, []byte("[signals]\nquit_on = [\"SIGUSR1\"]\n"), 0644))

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = unix.Kill(os.Getpid(), unix.SIGUSR1)
	}()

	var stdout, stderr bytes.Buffer
	code, err := runShell(runOptions{
		configPath: path,
		exitAfter:  5 * time.Second,
		stdinFD:    -1,
		stdout:     &stdout,
		stderr:     &stderr,
	})
	require.NoError(t, err)
	assert.Equal(t, 128+int(unix.SIGUSR1), code)
	assert.Contains(t, stderr.String(), `browsershell: quit signal received`)
}

func TestRunShell_BadConfig(t *testing.T) {
	code, err := runShell(runOptions{
		configPath: filepath.Join(t.TempDir(), "missing.toml"),
		stdinFD:    -1,
		stdout:     &bytes.Buffer{},
		stderr:     &bytes.Buffer{},
	})
	assert.Error(t, err)
	assert.Equal(t, 1, code)
}

func TestConfigCmd_PrintsEffectiveConfig(t *testing.T) {
	var stdout bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"config"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), "[loop]")
	assert.Contains(t, stdout.String(), `max_wait = "10s"`)
	assert.Contains(t, stdout.String(), `quit_on = ["SIGINT", "SIGTERM"]`)
}

func TestRunCmd_ExitCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "browsershell.toml")
	require.NoError(t, os.WriteFile(path, []byte("[signals]\nquit_on = [\"SIGUSR2\"]\n"), 0644))

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = unix.Kill(os.Getpid(), unix.SIGUSR2)
	}()

	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--config", path, "--exit-after", "5s"})
	err := cmd.Execute()
	assert.Equal(t, 128+int(unix.SIGUSR2), exitCode(err))
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(assert.AnError))
}
