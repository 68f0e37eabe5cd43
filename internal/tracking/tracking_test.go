package tracking

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileLogMarkAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed_days.txt")

	l, err := OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{"2025-09-19", "2025-09-20", "2025-09-19"} {
		if err := l.MarkProcessed(d); err != nil {
			t.Fatal(err)
		}
	}
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "2025-09-19\n2025-09-20\n" {
		t.Errorf("file contents = %q, want two lines", data)
	}

	// Reload and verify.
	l2, err := OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l2.Close()

	for _, d := range []string{"2025-09-19", "2025-09-20"} {
		if !l2.IsProcessed(d) {
			t.Errorf("expected %q to be processed after reload", d)
		}
	}
	if l2.IsProcessed("2025-09-21") {
		t.Error("2025-09-21 should not be processed")
	}
	if got := l2.Keys(); len(got) != 2 || got[0] != "2025-09-19" {
		t.Errorf("Keys() = %v, want [2025-09-19 2025-09-20]", got)
	}
}

func TestFileLogResumeFromPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "processed_products.txt")

	// Simulate an earlier run: write entries directly, with blank lines.
	if err := os.WriteFile(path, []byte("604\n\n605\n  606  \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	for _, g := range []string{"604", "605", "606"} {
		if !l.IsProcessed(g) {
			t.Errorf("%s should be loaded from the earlier run", g)
		}
	}
	if err := l.MarkProcessed("607"); err != nil {
		t.Fatal(err)
	}
	if !l.IsProcessed("607") {
		t.Error("607 should be processed after marking")
	}
}

type fakeKeyLog struct {
	keys map[string][]string
	fail error
}

func (f *fakeKeyLog) LoadKeys(_ context.Context, kind string) ([]string, error) {
	return f.keys[kind], nil
}

func (f *fakeKeyLog) AppendKey(_ context.Context, kind, key string) error {
	if f.fail != nil {
		return f.fail
	}
	f.keys[kind] = append(f.keys[kind], key)
	return nil
}

func TestKeyLogTracker(t *testing.T) {
	kl := &fakeKeyLog{keys: map[string][]string{KindGroups: {"604"}}}

	tr, err := OpenKeyLog(context.Background(), kl, KindGroups)
	if err != nil {
		t.Fatal(err)
	}
	if !tr.IsProcessed("604") {
		t.Error("604 should be loaded from the key log")
	}
	if err := tr.MarkProcessed("605"); err != nil {
		t.Fatal(err)
	}
	if err := tr.MarkProcessed("605"); err != nil {
		t.Fatal(err)
	}
	if got := kl.keys[KindGroups]; len(got) != 2 {
		t.Errorf("key log holds %v, want 2 keys", got)
	}
}

func TestKeyLogTrackerFailedMarkIsNotRemembered(t *testing.T) {
	kl := &fakeKeyLog{keys: map[string][]string{}, fail: errors.New("disk full")}

	tr, err := OpenKeyLog(context.Background(), kl, KindDays)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.MarkProcessed("2024-02-08"); err == nil {
		t.Fatal("MarkProcessed should surface the append error")
	}
	if tr.IsProcessed("2024-02-08") {
		t.Error("a failed mark must not count as processed")
	}
}
