// Package modexp implements a toy RSA-style cipher over 64-bit integers. It is
// wildly insecure, and exists to give the dispatcher something expensive-ish to
// compute.
package modexp

import (
	"errors"
	"fmt"
	"math/bits"
	"math/rand/v2"
)

// ErrNotInvertible is returned by [ModInverse] when no inverse exists.
var ErrNotInvertible = errors.New("value has no modular inverse")

// Rounds is the number of Miller-Rabin rounds used by [GenerateKeyPair].
const Rounds = 7

const defaultExponent = 65537

// ModPow returns b**e mod m.
func ModPow(b, e, m uint64) uint64 {
	if m == 1 {
		return 0
	}
	result := uint64(1)
	b %= m
	for e > 0 {
		if e&1 == 1 {
			result = mulMod(result, b, m)
		}
		b = mulMod(b, b, m)
		e >>= 1
	}
	return result
}

// mulMod returns a*b mod m for a, b < m.
func mulMod(a, b, m uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	_, rem := bits.Div64(hi, lo, m)
	return rem
}

// ModInverse returns x such that a*x ≡ 1 (mod m).
func ModInverse(a, m uint64) (uint64, error) {
	if m == 0 {
		return 0, fmt.Errorf("%w: modulus is zero", ErrNotInvertible)
	}
	if m > 1<<62 {
		return 0, fmt.Errorf("modulus %d too large", m)
	}
	var (
		oldR, r = int64(a % m), int64(m)
		oldS, s = int64(1), int64(0)
	)
	for r != 0 {
		q := oldR / r
		oldR, r = r, oldR-q*r
		oldS, s = s, oldS-q*s
	}
	if oldR != 1 {
		return 0, fmt.Errorf("%w: gcd(%d, %d) = %d", ErrNotInvertible, a, m, oldR)
	}
	if oldS < 0 {
		oldS += int64(m)
	}
	return uint64(oldS), nil
}

// IsProbablePrime runs the given number of Miller-Rabin rounds against n with
// witnesses drawn from rng.
func IsProbablePrime(n uint64, rounds int, rng *rand.Rand) bool {
	if n < 4 {
		return n == 2 || n == 3
	}
	if n&1 == 0 {
		return false
	}

	d, s := n-1, 0
	for d&1 == 0 {
		d >>= 1
		s++
	}

witness:
	for range rounds {
		a := 2 + rng.Uint64N(n-3) // [2, n-2]
		x := ModPow(a, d, n)
		if x == 1 || x == n-1 {
			continue
		}
		for range s - 1 {
			x = mulMod(x, x, n)
			if x == n-1 {
				continue witness
			}
		}
		return false
	}
	return true
}

// Key is one half of a [KeyPair].
type Key struct {
	N   uint64
	Exp uint64
}

// Apply raises m to the key's exponent modulo N. For a [KeyPair], applying the
// public key encrypts and applying the private key decrypts.
func (k Key) Apply(m uint64) uint64 {
	return ModPow(m, k.Exp, k.N)
}

// KeyPair is a toy RSA key pair.
type KeyPair struct {
	Public  Key
	Private Key
}

// GenerateKeyPair builds a key pair from two random primes of the given bit
// size, which must be between 4 and 31 so the modulus fits comfortably in 64
// bits.
func GenerateKeyPair(primeBits int, rng *rand.Rand) (KeyPair, error) {
	if primeBits < 4 || primeBits > 31 {
		return KeyPair{}, fmt.Errorf("prime size %d out of range [4, 31]", primeBits)
	}
	for {
		p := randomPrime(primeBits, rng)
		q := randomPrime(primeBits, rng)
		if p == q {
			continue
		}
		n, phi := p*q, (p-1)*(q-1)
		e := uint64(defaultExponent)
		if e >= phi {
			e = 3
		}
		for ; e < phi; e += 2 {
			d, err := ModInverse(e, phi)
			if err != nil {
				continue
			}
			return KeyPair{
				Public:  Key{N: n, Exp: e},
				Private: Key{N: n, Exp: d},
			}, nil
		}
	}
}

// randomPrime draws odd candidates with the top bit set until one passes
// [IsProbablePrime].
func randomPrime(primeBits int, rng *rand.Rand) uint64 {
	top := uint64(1) << (primeBits - 1)
	for {
		candidate := top | rng.Uint64N(top) | 1
		if IsProbablePrime(candidate, Rounds, rng) {
			return candidate
		}
	}
}
