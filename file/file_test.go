package file

import "testing"

func TestReadAtWriteAt(t *testing.T) {
	f := NewMemFile([]byte("hello world"))

	buf := make([]byte, 5)
	n, err := f.ReadAt(buf, 6)
	if err != nil || n != 5 || string(buf) != "world" {
		t.Fatalf("ReadAt = %q, %d, %v; want \"world\", 5, nil", buf, n, err)
	}

	if _, err := f.WriteAt([]byte("WORLD"), 6); err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}
	if got := string(f.Snapshot()); got != "hello WORLD" {
		t.Fatalf("after WriteAt, snapshot = %q", got)
	}

	// Writing past the end grows the file.
	if _, err := f.WriteAt([]byte("!"), 20); err != nil {
		t.Fatalf("WriteAt past EOF failed: %v", err)
	}
	if f.Length() != 21 {
		t.Fatalf("Length() = %d, want 21", f.Length())
	}
}

func TestReopenSharesBackingBytes(t *testing.T) {
	f := NewMemFile([]byte("abc"))
	r, err := f.Reopen()
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}

	if _, err := r.WriteAt([]byte("X"), 0); err != nil {
		t.Fatalf("WriteAt through reopened handle failed: %v", err)
	}
	if got := string(f.Snapshot()); got != "Xbc" {
		t.Fatalf("write through reopened handle not visible on original: got %q", got)
	}
}
