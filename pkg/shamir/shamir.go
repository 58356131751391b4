package shamir

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/mpinkus/Sss/pkg/gf256"
)

// Sentinel errors for the codec's algebraic preconditions, per the error
// taxonomy's InsufficientShares / DuplicateShares / InconsistentShareLengths
// kinds.
var (
	ErrInsufficientShares      = errors.New("shamir: insufficient shares")
	ErrDuplicateShares         = errors.New("shamir: duplicate share index")
	ErrInconsistentShareLength = errors.New("shamir: shares have inconsistent lengths")
)

// Split divides secret into n shares such that any k of them reconstruct
// it, and no k-1 of them reveal anything about it. Requires
// 2 <= k <= n <= 255 and a non-empty secret.
func Split(secret []byte, k, n int) ([]Share, error) {
	if k < 2 {
		return nil, fmt.Errorf("shamir: threshold must be at least 2, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("shamir: total shares (%d) must be >= threshold (%d)", n, k)
	}
	if n > 255 {
		return nil, fmt.Errorf("shamir: total shares cannot exceed 255, got %d", n)
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("shamir: secret cannot be empty")
	}

	shares := make([]Share, n)
	for i := 0; i < n; i++ {
		shares[i] = Share{X: byte(i + 1), Y: make([]byte, len(secret))}
	}

	coeffs := make([]byte, k)
	randBuf := make([]byte, k-1)
	for p := 0; p < len(secret); p++ {
		coeffs[0] = secret[p]
		if _, err := rand.Read(randBuf); err != nil {
			return nil, fmt.Errorf("shamir: failed to generate random coefficients: %w", err)
		}
		copy(coeffs[1:], randBuf)

		for i := 0; i < n; i++ {
			shares[i].Y[p] = evaluate(coeffs, shares[i].X)
		}
	}

	return shares, nil
}

// evaluate computes P(x) for the polynomial with the given coefficients
// (coeffs[0] is the constant term) using Horner's method in GF(256).
func evaluate(coeffs []byte, x byte) byte {
	result := coeffs[len(coeffs)-1]
	for i := len(coeffs) - 2; i >= 0; i-- {
		result = gf256.Add(gf256.Mul(result, x), coeffs[i])
	}
	return result
}

// Combine reconstructs the secret from at least k of the given shares,
// using only the first k (caller-ordered). All shares must have distinct,
// non-zero X and equal-length Y.
func Combine(shares []Share, k int) ([]byte, error) {
	if len(shares) < k {
		return nil, fmt.Errorf("%w: need %d, got %d", ErrInsufficientShares, k, len(shares))
	}
	shares = shares[:k]

	seen := make(map[byte]bool, k)
	for _, s := range shares {
		if s.X == 0 {
			return nil, fmt.Errorf("shamir: share X must be non-zero")
		}
		if seen[s.X] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateShares, s.X)
		}
		seen[s.X] = true
	}

	secretLen := len(shares[0].Y)
	for _, s := range shares {
		if len(s.Y) != secretLen {
			return nil, ErrInconsistentShareLength
		}
	}

	secret := make([]byte, secretLen)
	for p := 0; p < secretLen; p++ {
		b, err := lagrangeAtZero(shares, p)
		if err != nil {
			return nil, err
		}
		secret[p] = b
	}
	return secret, nil
}

// lagrangeAtZero evaluates the Lagrange interpolation polynomial through
// shares at x=0, for byte position p of each share's Y. This recovers the
// secret's constant term, i.e. secret[p].
func lagrangeAtZero(shares []Share, p int) (byte, error) {
	var result byte
	for i := range shares {
		xi, yi := shares[i].X, shares[i].Y[p]

		var numerator byte = 1
		var denominator byte = 1
		for j := range shares {
			if i == j {
				continue
			}
			xj := shares[j].X
			// (0 - xj) == xj in GF(256), since subtraction is XOR.
			numerator = gf256.Mul(numerator, xj)
			denominator = gf256.Mul(denominator, gf256.Sub(xi, xj))
		}

		basis, err := gf256.Div(numerator, denominator)
		if err != nil {
			return 0, fmt.Errorf("shamir: interpolation failed: %w", err)
		}
		result = gf256.Add(result, gf256.Mul(yi, basis))
	}
	return result, nil
}
