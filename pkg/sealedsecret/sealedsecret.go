// Package sealedsecret provides a container for secret byte material that
// owns its backing buffer, forbids incidental copies, and overwrites itself
// on release. It is the in-memory home for a ceremony's plaintext secret and
// any derived key material between the moment they're produced and the
// moment they're no longer needed.
package sealedsecret

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrReleased is returned by any operation attempted on a Bytes that has
// already been released.
var ErrReleased = errors.New("sealedsecret: secret has been released")

// ErrEmpty is returned when constructing a Bytes from zero-length data.
var ErrEmpty = errors.New("sealedsecret: secret cannot be empty")

// defaultWipePasses is used until SetWipePasses is called: two random-fill
// passes followed by a final zero pass, so the last bytes left behind are
// never the secret's own pattern.
const defaultWipePasses = 3

// wipePasses holds the configured overwrite pass count, set once at
// startup from ceremonyconfig.SecurityConfig.SecureDeletePasses (already
// range-validated to 1-10). Stored in an atomic so every sealed buffer in
// the process picks up the configured value without threading a parameter
// through New and Release.
var wipePasses int32 = defaultWipePasses

// SetWipePasses configures the number of overwrite passes Release performs.
// n must be at least 1; values below that are ignored and the previous
// setting is kept.
func SetWipePasses(n int) {
	if n < 1 {
		return
	}
	atomic.StoreInt32(&wipePasses, int32(n))
}

// Bytes owns a secret byte buffer. It must be constructed with New and
// released with Release exactly once; every accessor takes a lock and
// rejects use after release. Bytes is not copyable in spirit: callers should
// pass *Bytes, never dereference and copy the struct.
type Bytes struct {
	mu       sync.Mutex
	data     []byte
	released bool
}

// New copies src into a new sealed buffer. The caller remains responsible
// for wiping src itself if it no longer needs the original.
func New(src []byte) (*Bytes, error) {
	if len(src) == 0 {
		return nil, ErrEmpty
	}
	data := make([]byte, len(src))
	copy(data, src)
	return &Bytes{data: data}, nil
}

// Len returns the length of the sealed buffer, or 0 if released.
func (b *Bytes) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Borrow grants fn temporary read/write access to the underlying buffer.
// fn must not retain the slice past its own return: the buffer may be wiped
// and freed at any point after Borrow returns.
func (b *Bytes) Borrow(fn func([]byte) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return ErrReleased
	}
	return fn(b.data)
}

// Copy returns a fresh copy of the sealed bytes. Prefer Borrow when
// possible; Copy exists for call sites (e.g. handing Y off to an envelope
// encryption) that need to own their own buffer.
func (b *Bytes) Copy() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil, ErrReleased
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

// Release overwrites the buffer in place across several passes and frees
// it. Safe to call more than once; subsequent calls are no-ops.
func (b *Bytes) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released || b.data == nil {
		b.released = true
		b.data = nil
		return
	}
	wipe(b.data)
	b.data = nil
	b.released = true
}

// wipe overwrites buf across the configured number of passes: random bytes
// on every pass but the last, which is an all-zero pass performed via
// subtle.ConstantTimeCopy so the compiler cannot elide it as a dead store.
func wipe(buf []byte) {
	passes := int(atomic.LoadInt32(&wipePasses))
	for pass := 0; pass < passes-1; pass++ {
		_, _ = rand.Read(buf)
	}
	zero := make([]byte, len(buf))
	subtle.ConstantTimeCopy(1, buf, zero)
}
