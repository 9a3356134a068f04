package sink

import (
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
)

func TestMemorySink(t *testing.T) {
	s := NewMemorySink("test")

	for _, name := range []string{"b.txt", "a.txt"} {
		w, err := s.Create(name)
		if err != nil {
			t.Fatalf("Create(%q) error = %v", name, err)
		}
		writeAll(t, w, "content of "+name)
	}

	if got, want := s.Names(), []string{"a.txt", "b.txt"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	data, ok := s.Get("a.txt")
	if !ok || string(data) != "content of a.txt" {
		t.Errorf("Get(a.txt) = %q, %v", data, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("Get(missing) found a file")
	}
	if s.Location() != "memory:test" {
		t.Errorf("Location() = %q", s.Location())
	}
}

func TestMemorySink_UnclosedWriterStoresNothing(t *testing.T) {
	s := NewMemorySink("test")
	w, err := s.Create("a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}
	if len(s.Names()) != 0 {
		t.Errorf("Names() = %v before Close, want none", s.Names())
	}
}

func TestMemorySink_SetModTime(t *testing.T) {
	s := NewMemorySink("test")
	when := time.Date(2022, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := s.SetModTime("missing", when); err == nil {
		t.Error("SetModTime(missing) succeeded, want error")
	}

	w, _ := s.Create("a.txt")
	writeAll(t, w, "x")
	if err := s.SetModTime("a.txt", when); err != nil {
		t.Fatalf("SetModTime() error = %v", err)
	}
	if !s.ModTime("a.txt").Equal(when) {
		t.Errorf("ModTime() = %v, want %v", s.ModTime("a.txt"), when)
	}
}

func TestMemorySink_Abort(t *testing.T) {
	s := NewMemorySink("test")
	w, err := s.Create("chat.txt")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	io.WriteString(w, "partial")
	if err := w.(ibex.Aborter).Abort(); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}
	if _, ok := s.Get("chat.txt"); ok {
		t.Error("aborted file was stored")
	}
}
