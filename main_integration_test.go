package main

import (
	"bufio"
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func buildTestBinary(t *testing.T) string {
	binName := "portal_it_bin"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	bin := filepath.Join(t.TempDir(), binName)
	cmd := exec.Command("go", "build", "-o", bin, ".")
	cmd.Env = os.Environ()
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build binary: %v\n%s", err, string(out))
	}
	return bin
}

func isolatedEnv(t *testing.T) []string {
	env := []string{"HOME=" + t.TempDir(), "PATH=" + os.Getenv("PATH")}
	return append(env, "PORTAL_DB_PATH="+filepath.Join(t.TempDir(), "session.db"))
}

func TestVersion(t *testing.T) {
	bin := buildTestBinary(t)
	cmd := exec.Command(bin, "version")
	cmd.Env = isolatedEnv(t)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("version failed: %v\n%s", err, out)
	}
	if !bytes.Contains(out, []byte("Portal version:")) {
		t.Fatalf("unexpected output: %s", out)
	}
}

// TestNotLoggedInExitCode checks that a protected call without a session fails with the auth exit code.
func TestNotLoggedInExitCode(t *testing.T) {
	bin := buildTestBinary(t)
	cmd := exec.Command(bin, "call", "GET", "/job-offers")
	cmd.Env = isolatedEnv(t)
	out, err := cmd.CombinedOutput()

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected an exit error, got %v\n%s", err, out)
	}
	if exitErr.ExitCode() != 3 {
		t.Fatalf("expected exit code 3, got %d\n%s", exitErr.ExitCode(), out)
	}
	if !bytes.Contains(out, []byte("portal login")) {
		t.Fatalf("expected a login hint, got: %s", out)
	}
}

// TestGracefulInterrupt runs the mock server and sends SIGINT, expecting it to stop promptly.
func TestGracefulInterrupt(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("os.Interrupt cannot be sent on windows")
	}
	bin := buildTestBinary(t)
	cmd := exec.Command(bin, "mock-server", "--addr", "127.0.0.1:0")
	cmd.Env = isolatedEnv(t)
	// Cobra prints command messages to stderr unless an output writer is set.
	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start binary: %v", err)
	}

	started := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if strings.Contains(scanner.Text(), "listening") {
				close(started)
				break
			}
		}
		for scanner.Scan() {
		}
	}()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		t.Fatal("mock server did not start")
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		t.Fatalf("failed to send interrupt: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected a clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		t.Fatal("process did not exit within 5s after SIGINT")
	}
}
