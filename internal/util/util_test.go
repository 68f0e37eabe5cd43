package util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), maxAttempts, 0, func() error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestRetryPermanent(t *testing.T) {
	sentinel := errors.New("not found")
	attempts := 0

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		return Permanent(sentinel)
	})

	if !errors.Is(err, sentinel) {
		t.Fatalf("Retry error = %v, want %v", err, sentinel)
	}
	if attempts != 1 {
		t.Errorf("Retry called fn %d times, want 1", attempts)
	}
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, time.Hour, func() error {
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry error = %v, want context.Canceled", err)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0)
	if rl != nil {
		t.Fatal("NewRateLimiter(0) should return nil")
	}
	if err := rl.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter Wait returned %v", err)
	}
}

func TestRateLimiterFirstTokenImmediate(t *testing.T) {
	rl := NewRateLimiter(60)
	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("first Wait should not block")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); err == nil {
		t.Error("second Wait within the same second should hit the deadline")
	}
}

func TestDateSteps(t *testing.T) {
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)

	got := DateSteps(start, end, 7)
	want := []string{"2024-02-01", "2024-02-08", "2024-02-15"}
	if len(got) != len(want) {
		t.Fatalf("DateSteps returned %d dates, want %d", len(got), len(want))
	}
	for i, d := range got {
		if d.Format("2006-01-02") != want[i] {
			t.Errorf("DateSteps[%d] = %s, want %s", i, d.Format("2006-01-02"), want[i])
		}
	}

	if n := len(DateSteps(end, start, 1)); n != 0 {
		t.Errorf("inverted range returned %d dates, want 0", n)
	}
	if n := len(DateSteps(start, start, 0)); n != 1 {
		t.Errorf("single-day range returned %d dates, want 1", n)
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("debug", "json", &buf)
	log.Debug("hello", "k", "v")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("json logger output = %q, want JSON object", buf.String())
	}

	buf.Reset()
	log = NewLogger("warn", "text", &buf)
	log.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info record written at warn level: %q", buf.String())
	}

	if ParseLevel("bogus") != slog.LevelInfo {
		t.Error("unknown level should map to info")
	}
}

func TestLogOutputTeesToDatedFile(t *testing.T) {
	dir := t.TempDir()
	w, closeFn, err := LogOutput(filepath.Join(dir, "logs", "tcg-prices-{date}.log"))
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprintln(w, "line")
	if err := closeFn(); err != nil {
		t.Fatal(err)
	}

	want := filepath.Join(dir, "logs", "tcg-prices-"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if string(data) != "line\n" {
		t.Errorf("log file = %q, want %q", data, "line\n")
	}
}
