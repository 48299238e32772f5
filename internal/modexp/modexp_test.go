package modexp

import (
	"math/rand/v2"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestModPow(t *testing.T) {
	testCases := []struct {
		b, e, m uint64
		want    uint64
	}{
		{b: 4, e: 13, m: 497, want: 445},
		{b: 2, e: 10, m: 1000, want: 24},
		{b: 7, e: 0, m: 13, want: 1},
		{b: 123, e: 456, m: 1, want: 0},
		{b: 1<<63 + 5, e: 3, m: 1<<63 + 7, want: 1<<63 - 1},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, ModPow(tc.b, tc.e, tc.m), "%d**%d mod %d", tc.b, tc.e, tc.m)
	}
}

func TestModInverse(t *testing.T) {
	got, err := ModInverse(3, 11)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), got)

	got, err = ModInverse(17, 3120)
	require.NoError(t, err)
	assert.Equal(t, uint64(2753), got)

	_, err = ModInverse(6, 9)
	assert.ErrorIs(t, err, ErrNotInvertible)
}

func TestIsProbablePrime(t *testing.T) {
	rng := testRand()
	primes := []uint64{2, 3, 5, 7, 11, 13, 65537, 2147483647}
	composites := []uint64{0, 1, 4, 9, 15, 561, 1105, 65535, 2147483649}

	for _, p := range primes {
		assert.True(t, IsProbablePrime(p, Rounds, rng), "%d should be prime", p)
	}
	for _, c := range composites {
		assert.False(t, IsProbablePrime(c, Rounds, rng), "%d should be composite", c)
	}
}

func TestKeyPairRoundTrip(t *testing.T) {
	rng := testRand()
	for _, bits := range []int{4, 8, 16, 31} {
		pair, err := GenerateKeyPair(bits, rng)
		require.NoError(t, err)
		assert.Equal(t, pair.Public.N, pair.Private.N)

		messages := lo.Filter(lo.Range(64), func(m int, _ int) bool { return uint64(m) < pair.Public.N })
		for _, m := range messages {
			cipher := pair.Public.Apply(uint64(m))
			assert.Equal(t, uint64(m), pair.Private.Apply(cipher), "round trip of %d with %d-bit primes", m, bits)
		}
	}
}

func TestGenerateKeyPairBounds(t *testing.T) {
	for _, bits := range []int{0, 3, 32} {
		_, err := GenerateKeyPair(bits, testRand())
		assert.Error(t, err, "prime size %d", bits)
	}
}
