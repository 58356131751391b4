// Package shamir implements Shamir's Secret Sharing over GF(256): splitting
// a byte-string secret into N shares at threshold K, and reconstructing it
// from any K of them via Lagrange interpolation.
package shamir

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Share is a single point (X, Y) on the secret's polynomial. X identifies
// the share (1..255, non-zero); Y is a byte string the same length as the
// secret.
type Share struct {
	X byte
	Y []byte
}

// shareWire is the canonical JSON shape a Share serializes to/from inside a
// Share Envelope: {"X":<int>,"Y":"<base64>"}.
type shareWire struct {
	X int    `json:"X"`
	Y string `json:"Y"`
}

// MarshalJSON encodes the Share in the canonical {"X":<int>,"Y":"<base64>"}
// shape required by the envelope's plaintext format.
func (s Share) MarshalJSON() ([]byte, error) {
	return json.Marshal(shareWire{
		X: int(s.X),
		Y: base64.StdEncoding.EncodeToString(s.Y),
	})
}

// UnmarshalJSON decodes the canonical Share shape, rejecting an X outside
// [1,255] or malformed base64.
func (s *Share) UnmarshalJSON(data []byte) error {
	var w shareWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("shamir: malformed share: %w", err)
	}
	if w.X < 1 || w.X > 255 {
		return fmt.Errorf("shamir: share X=%d out of range [1,255]", w.X)
	}
	y, err := base64.StdEncoding.DecodeString(w.Y)
	if err != nil {
		return fmt.Errorf("shamir: malformed share Y: %w", err)
	}
	s.X = byte(w.X)
	s.Y = y
	return nil
}
