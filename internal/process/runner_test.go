package process

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunCapturesOutput(t *testing.T) {
	r := NewRunner()
	res, err := r.Run(context.Background(), Options{
		Argv: []string{"sh", "-c", "echo hello; echo world 1>&2"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Stdout) != "hello\n" {
		t.Errorf("stdout = %q, want %q", res.Stdout, "hello\n")
	}
	if string(res.Stderr) != "world\n" {
		t.Errorf("stderr = %q, want %q", res.Stderr, "world\n")
	}
	if res.ReturnCode != 0 {
		t.Errorf("returncode = %d, want 0", res.ReturnCode)
	}
}

func TestRunCheckFailsOnNonZero(t *testing.T) {
	r := NewRunner()
	_, err := r.Run(context.Background(), Options{
		Argv:  []string{"sh", "-c", "exit 3"},
		Check: true,
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *Failure, got %T: %v", err, err)
	}
	if failure.ReturnCode != 3 {
		t.Errorf("returncode = %d, want 3", failure.ReturnCode)
	}
	if !errors.Is(err, ErrProcessFailure) {
		t.Errorf("errors.Is(err, ErrProcessFailure) = false")
	}
}

func TestRunNoCheckNeverErrorsOnNonZero(t *testing.T) {
	r := NewRunner()
	res, err := r.Run(context.Background(), Options{
		Argv:  []string{"sh", "-c", "exit 7"},
		Check: false,
	})
	if err != nil {
		t.Fatalf("unexpected error with check=false: %v", err)
	}
	if res.ReturnCode != 7 {
		t.Errorf("returncode = %d, want 7", res.ReturnCode)
	}
}

func TestRunTimeout(t *testing.T) {
	r := NewRunner()
	_, err := r.Run(context.Background(), Options{
		Argv:    []string{"sleep", "2"},
		Timeout: 20 * time.Millisecond,
	})
	if !errors.Is(err, ErrProcessTimeout) {
		t.Fatalf("expected ErrProcessTimeout, got %v", err)
	}
}

func TestRunMissingExecutableReturnsErrorInsteadOfPanicking(t *testing.T) {
	r := NewRunner()
	_, err := r.Run(context.Background(), Options{
		Argv: []string{"this-binary-does-not-exist-on-path"},
	})
	if err == nil {
		t.Fatal("expected an error for a missing executable")
	}
}

func TestRunStdin(t *testing.T) {
	r := NewRunner()
	res, err := r.Run(context.Background(), Options{
		Argv:  []string{"cat"},
		Stdin: []byte("piped-in"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Stdout) != "piped-in" {
		t.Errorf("stdout = %q, want %q", res.Stdout, "piped-in")
	}
}
