package storage

import (
	"io"
	"strings"
	"testing"
)

// TestFilesystemPutGet verifies round-tripping an object.
func TestFilesystemPutGet(t *testing.T) {
	adapter, err := NewFilesystemAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemAdapter() error = %v", err)
	}

	obj, err := adapter.Put("images/abc/photo.jpg", strings.NewReader("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if obj.Size != int64(len("jpeg-bytes")) {
		t.Errorf("Put() size = %d, want %d", obj.Size, len("jpeg-bytes"))
	}

	r, err := adapter.GetStream("images/abc/photo.jpg")
	if err != nil {
		t.Fatalf("GetStream() error = %v", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("GetStream() = %q, want %q", data, "jpeg-bytes")
	}
}

// TestFilesystemListOrdered verifies per-prefix listing is sorted by path.
func TestFilesystemListOrdered(t *testing.T) {
	adapter, err := NewFilesystemAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemAdapter() error = %v", err)
	}

	for _, key := range []string{
		"videos/v1/frames/frame_000010.jpg",
		"videos/v1/frames/frame_000000.jpg",
		"videos/v1/frames/frame_000005.jpg",
		"videos/v2/frames/frame_000000.jpg",
	} {
		if _, err := adapter.Put(key, strings.NewReader("x")); err != nil {
			t.Fatalf("Put(%s) error = %v", key, err)
		}
	}

	objects, err := adapter.List("videos/v1/frames/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(objects) != 3 {
		t.Fatalf("List() returned %d objects, want 3", len(objects))
	}
	for i := 1; i < len(objects); i++ {
		if objects[i-1].Path >= objects[i].Path {
			t.Errorf("List() not sorted: %s before %s", objects[i-1].Path, objects[i].Path)
		}
	}
}

// TestFilesystemExistsDelete verifies existence checks and deletes.
func TestFilesystemExistsDelete(t *testing.T) {
	adapter, err := NewFilesystemAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemAdapter() error = %v", err)
	}

	if _, err := adapter.Put("a/b.bin", strings.NewReader("x")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	ok, err := adapter.Exists("a/b.bin")
	if err != nil || !ok {
		t.Errorf("Exists() = %v, %v; want true, nil", ok, err)
	}

	if err := adapter.Delete("a/b.bin"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}

	ok, err = adapter.Exists("a/b.bin")
	if err != nil || ok {
		t.Errorf("Exists() after delete = %v, %v; want false, nil", ok, err)
	}

	// deleting a missing object is not an error
	if err := adapter.Delete("a/b.bin"); err != nil {
		t.Errorf("Delete() of missing object error = %v", err)
	}
}
