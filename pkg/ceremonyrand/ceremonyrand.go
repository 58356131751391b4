// Package ceremonyrand provides the random number source the ceremony
// engine uses to generate a random secret. It exposes a narrow Resolver
// interface so a ceremony can be run with a non-default source in tests.
// The Shamir codec's coefficients and the envelope's salts and nonces do
// not go through a Resolver; those packages read crypto/rand directly.
package ceremonyrand

import "crypto/rand"

// Resolver generates cryptographically secure random bytes.
type Resolver interface {
	// Rand returns n random bytes, or an error if entropy could not be
	// obtained.
	Rand(n int) ([]byte, error)

	// Read implements io.Reader, so a Resolver can be passed anywhere a
	// source of randomness is expected (e.g. rsa.GenerateKey).
	Read(p []byte) (int, error)
}

// SoftwareResolver is the sole Resolver implementation: it wraps
// crypto/rand. The ceremony runs entirely in software, so hardware-backed
// RNG sources have no component to plug into here.
type SoftwareResolver struct{}

var _ Resolver = SoftwareResolver{}

// New returns the software RNG resolver.
func New() SoftwareResolver {
	return SoftwareResolver{}
}

// Rand returns n bytes read from crypto/rand.
func (SoftwareResolver) Rand(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Read implements io.Reader by delegating to crypto/rand.Reader.
func (SoftwareResolver) Read(p []byte) (int, error) {
	return rand.Read(p)
}
