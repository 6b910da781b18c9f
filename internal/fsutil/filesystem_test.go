package fsutil

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fs := OSFileSystem{}

	if !fs.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if fs.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_List(t *testing.T) {
	dir := t.TempDir()
	fs := OSFileSystem{}
	for _, name := range []string{"0002.png", "0000.png", "0001.png"} {
		if err := fs.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	if err := fs.MkdirAll(filepath.Join(dir, "sub", "deeper"), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	names, err := fs.List(dir)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"0000.png", "0001.png", "0002.png", "sub"}
	if len(names) != len(want) {
		t.Fatalf("List = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.WriteFile("/data/01/gt.yml", []byte("0: []"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := mfs.ReadFile("/data/01/gt.yml")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "0: []" {
		t.Errorf("got %q", data)
	}
	if !mfs.Exists("/data/01") || !mfs.Exists("/data") {
		t.Error("parent directories should exist after WriteFile")
	}
}

func TestMemoryFileSystem_CreateAndOpen(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("debug/linemod_res.yml")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("created content")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := mfs.Open("debug/linemod_res.yml")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "created content" {
		t.Errorf("got %q", data)
	}

	if _, err := mfs.Open("debug/missing.yml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMemoryFileSystem_Stat(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.WriteFile("a/b.txt", []byte("1234"), 0644); err != nil {
		t.Fatal(err)
	}

	info, err := mfs.Stat("a/b.txt")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 4 || info.IsDir() {
		t.Errorf("unexpected file info: size=%d dir=%v", info.Size(), info.IsDir())
	}

	info, err = mfs.Stat("a")
	if err != nil {
		t.Fatalf("Stat dir failed: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected directory")
	}

	if _, err := mfs.Stat("nope"); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestMemoryFileSystem_List(t *testing.T) {
	mfs := NewMemoryFileSystem()
	files := []string{
		"root/data/01/rgb/0001.png",
		"root/data/01/rgb/0000.png",
		"root/data/01/depth/0000.png",
		"root/data/02/rgb/0000.png",
	}
	for _, f := range files {
		if err := mfs.WriteFile(f, []byte{1}, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := mfs.MkdirAll("root/data/03", 0755); err != nil {
		t.Fatal(err)
	}

	got, err := mfs.List("root/data")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 3 || got[0] != "01" || got[2] != "03" {
		t.Errorf("List(root/data) = %v", got)
	}

	got, err = mfs.List("root/data/01/rgb")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 || got[0] != "0000.png" || got[1] != "0001.png" {
		t.Errorf("List(rgb) = %v", got)
	}

	if _, err := mfs.List("root/none"); err == nil {
		t.Error("expected error listing missing dir")
	}
}

func TestMemoryFileSystem_MkdirOverFile(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.WriteFile("x", []byte{}, 0644); err != nil {
		t.Fatal(err)
	}
	if err := mfs.MkdirAll("x", 0755); err == nil {
		t.Error("expected error creating a directory over a file")
	}
}
