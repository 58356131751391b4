package shamir

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestSplitCombineRoundTrip(t *testing.T) {
	secret := []byte("This is a test secret")
	shares, err := Split(secret, 3, 5)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(shares) != 5 {
		t.Fatalf("len(shares) = %d, want 5", len(shares))
	}

	chosen := []Share{shares[0], shares[2], shares[4]} // x=1,3,5
	got, err := Combine(chosen, 3)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if !bytes.Equal(got, secret) {
		t.Fatalf("Combine = %q, want %q", got, secret)
	}
}

func TestSplitCombineZeroSecret(t *testing.T) {
	secret := make([]byte, 32)
	shares, err := Split(secret, 2, 3)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	got, err := Combine([]Share{shares[1], shares[2]}, 2)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if !bytes.Equal(got, secret) {
		t.Fatalf("Combine = %x, want %x", got, secret)
	}

	if _, err := Combine([]Share{shares[0]}, 2); err == nil {
		t.Fatal("Combine with 1 share should fail")
	}
}

func TestCombineInsufficientShares(t *testing.T) {
	shares, err := Split([]byte("secret"), 3, 5)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if _, err := Combine(shares[:2], 3); err == nil {
		t.Fatal("expected insufficient shares error")
	}
}

func TestCombineDuplicateShares(t *testing.T) {
	shares, err := Split([]byte("secret"), 2, 3)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	dup := []Share{shares[0], shares[0]}
	if _, err := Combine(dup, 2); err == nil {
		t.Fatal("expected duplicate share error")
	}
}

func TestCombineInconsistentLengths(t *testing.T) {
	shares, err := Split([]byte("secret"), 2, 3)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	bad := []Share{shares[0], {X: shares[1].X, Y: shares[1].Y[:len(shares[1].Y)-1]}}
	if _, err := Combine(bad, 2); err == nil {
		t.Fatal("expected inconsistent length error")
	}
}

func TestSplitRejectsBadParams(t *testing.T) {
	cases := []struct {
		name   string
		secret []byte
		k, n   int
	}{
		{"threshold too low", []byte("x"), 1, 5},
		{"total less than threshold", []byte("x"), 4, 3},
		{"too many shares", []byte("x"), 2, 256},
		{"empty secret", []byte{}, 2, 3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Split(c.secret, c.k, c.n); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRoundTripExhaustive(t *testing.T) {
	for _, size := range []int{1, 16, 32, 100, 1024} {
		secret := make([]byte, size)
		if _, err := rand.Read(secret); err != nil {
			t.Fatal(err)
		}
		for _, kn := range [][2]int{{2, 2}, {2, 5}, {3, 5}, {5, 5}, {5, 32}} {
			k, n := kn[0], kn[1]
			shares, err := Split(secret, k, n)
			if err != nil {
				t.Fatalf("Split(size=%d,k=%d,n=%d): %v", size, k, n, err)
			}
			got, err := Combine(shares, k)
			if err != nil {
				t.Fatalf("Combine(size=%d,k=%d,n=%d): %v", size, k, n, err)
			}
			if !bytes.Equal(got, secret) {
				t.Fatalf("round trip mismatch for size=%d,k=%d,n=%d", size, k, n)
			}
		}
	}
}

// TestSharesStatisticallyHideSecret is a weak statistical hint test: for
// two distinct fixed secret bytes, the distribution of a single share's Y
// byte over many splits should look uniform and not distinguish the two
// secrets (k-1 shares reveal nothing on their own).
func TestSharesStatisticallyHideSecret(t *testing.T) {
	const trials = 2000
	var histA, histB [256]int

	for i := 0; i < trials; i++ {
		sharesA, err := Split([]byte{0x00}, 2, 2)
		if err != nil {
			t.Fatal(err)
		}
		histA[sharesA[0].Y[0]]++

		sharesB, err := Split([]byte{0xFF}, 2, 2)
		if err != nil {
			t.Fatal(err)
		}
		histB[sharesB[0].Y[0]]++
	}

	// Neither histogram should be concentrated on a handful of values;
	// a weak signal that the single-share projection isn't leaking the
	// secret byte directly.
	maxA, maxB := 0, 0
	for i := 0; i < 256; i++ {
		if histA[i] > maxA {
			maxA = histA[i]
		}
		if histB[i] > maxB {
			maxB = histB[i]
		}
	}
	if maxA > trials/4 || maxB > trials/4 {
		t.Fatalf("share byte distribution too concentrated: maxA=%d maxB=%d trials=%d", maxA, maxB, trials)
	}
}
