package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mkv", "a.mkv", "c.srt"} {
		touch(t, filepath.Join(dir, name))
	}
	if err := os.Mkdir(filepath.Join(dir, "d.mkv"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := Expand([]string{
		filepath.Join(dir, "*.mkv"),
		filepath.Join(dir, "c.srt"),
		filepath.Join(dir, "a.mkv"),
	})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	var names []string
	for _, p := range got {
		names = append(names, filepath.Base(p))
	}
	if strings.Join(names, ",") != "a.mkv,b.mkv,c.srt" {
		t.Fatalf("unexpected expansion %v", names)
	}
}

func TestExpandNoMatch(t *testing.T) {
	dir := t.TempDir()
	if _, err := Expand([]string{filepath.Join(dir, "*.mp4")}); err == nil {
		t.Fatal("expected error for empty glob")
	}
	if _, err := Expand([]string{filepath.Join(dir, "missing.mp4")}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestStem(t *testing.T) {
	if got := Stem("/videos/My Talk.final.mkv"); got != "My Talk.final" {
		t.Fatalf("Stem = %q", got)
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.srt")
	dst := filepath.Join(dir, "out", "dst.srt")
	touch(t, src)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("source still present")
	}
	if data, _ := os.ReadFile(dst); string(data) != "src.srt" {
		t.Fatalf("dst = %q", data)
	}
}

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "payload" {
		t.Fatalf("content mismatch: %q", got)
	}
	if err := CopyFileVerified(filepath.Join(dir, "missing"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
}
