package sealedsecret

import (
	"bytes"
	"testing"
)

func TestNewRejectsEmpty(t *testing.T) {
	if _, err := New(nil); err != ErrEmpty {
		t.Fatalf("New(nil) error = %v, want ErrEmpty", err)
	}
	if _, err := New([]byte{}); err != ErrEmpty {
		t.Fatalf("New([]byte{}) error = %v, want ErrEmpty", err)
	}
}

func TestNewCopiesInput(t *testing.T) {
	src := []byte("hello secret")
	s, err := New(src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Release()

	src[0] = 'X'
	got, err := s.Copy()
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if !bytes.Equal(got, []byte("hello secret")) {
		t.Fatalf("Copy = %q, want unaffected by later mutation of src", got)
	}
}

func TestBorrowSeesData(t *testing.T) {
	s, err := New([]byte("abc"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Release()

	var seen []byte
	err = s.Borrow(func(b []byte) error {
		seen = append(seen, b...)
		return nil
	})
	if err != nil {
		t.Fatalf("Borrow: %v", err)
	}
	if !bytes.Equal(seen, []byte("abc")) {
		t.Fatalf("Borrow saw %q, want %q", seen, "abc")
	}
}

func TestReleaseWipesAndBlocksFurtherUse(t *testing.T) {
	s, err := New([]byte("top secret value"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Release()

	if _, err := s.Copy(); err != ErrReleased {
		t.Fatalf("Copy after release error = %v, want ErrReleased", err)
	}
	if err := s.Borrow(func([]byte) error { return nil }); err != ErrReleased {
		t.Fatalf("Borrow after release error = %v, want ErrReleased", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len after release = %d, want 0", s.Len())
	}
}

func TestReleaseIdempotent(t *testing.T) {
	s, err := New([]byte("x"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Release()
	s.Release() // must not panic
}

func TestWipeLeavesAllZeroBytes(t *testing.T) {
	buf := bytes.Repeat([]byte{0xAB}, 64)
	wipe(buf)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("wipe left non-zero byte at %d: %x", i, b)
		}
	}
}

func TestSetWipePassesConfiguresPassCount(t *testing.T) {
	defer SetWipePasses(defaultWipePasses)

	SetWipePasses(1)
	buf := bytes.Repeat([]byte{0xAB}, 32)
	wipe(buf)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("wipe with 1 pass left non-zero byte at %d: %x", i, b)
		}
	}
}

func TestSetWipePassesIgnoresNonPositive(t *testing.T) {
	defer SetWipePasses(defaultWipePasses)

	SetWipePasses(5)
	SetWipePasses(0)
	if got := int(wipePasses); got != 5 {
		t.Fatalf("wipePasses after SetWipePasses(0) = %d, want unchanged 5", got)
	}
	SetWipePasses(-1)
	if got := int(wipePasses); got != 5 {
		t.Fatalf("wipePasses after SetWipePasses(-1) = %d, want unchanged 5", got)
	}
}
