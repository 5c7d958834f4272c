package key

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeLayout(t *testing.T) {
	k, err := Encode([]byte("user1"), []byte("age"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x05, 'u', 's', 'e', 'r', '1', 'a', 'g', 'e'}, k)

	k, err = Encode(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00}, k)
}

func TestEncodeRejectsLongHashKey(t *testing.T) {
	_, err := Encode(make([]byte, MaxHashKeyLen), []byte("s"))
	assert.ErrorIs(t, err, ErrInvalidHashKey)

	_, err = EncodeSuccessor(make([]byte, MaxHashKeyLen+10))
	assert.ErrorIs(t, err, ErrInvalidHashKey)

	// the largest allowed hash key still fits the prefix
	k, err := Encode(make([]byte, MaxHashKeyLen-1), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF}, k[:2])
}

func TestDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		hashKey []byte
		sortKey []byte
	}{
		{"plain", []byte("user1"), []byte("age")},
		{"empty sort key", []byte("user1"), nil},
		{"empty hash key", nil, []byte("only-sort")},
		{"binary", []byte{0x00, 0xFF, 0x01}, []byte{0xFF, 0x00}},
		{"long hash key", bytes.Repeat([]byte{'h'}, MaxHashKeyLen-1), []byte("s")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := Encode(tt.hashKey, tt.sortKey)
			require.NoError(t, err)

			h, s, err := Decode(k)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tt.hashKey, h), "hash key mismatch")
			assert.True(t, bytes.Equal(tt.sortKey, s), "sort key mismatch")
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	_, _, err := Decode([]byte{0x00})
	assert.ErrorIs(t, err, ErrMalformedKey)

	_, _, err = Decode([]byte{0x00, 0x05, 'a'})
	assert.ErrorIs(t, err, ErrMalformedKey)
}

func TestPartitionHashIgnoresSortKey(t *testing.T) {
	for _, hashKey := range [][]byte{nil, []byte("a"), []byte("user1"), {0xFF, 0xFF}} {
		k1, err := Encode(hashKey, []byte("sort-1"))
		require.NoError(t, err)
		k2, err := Encode(hashKey, []byte("another-sort-key"))
		require.NoError(t, err)

		assert.Equal(t, PartitionHash(k1), PartitionHash(k2))
		assert.Equal(t, HashKeyHash(hashKey), PartitionHash(k1))
	}
}

func TestPartitionHashStable(t *testing.T) {
	k, err := Encode([]byte("user1"), []byte("age"))
	require.NoError(t, err)
	assert.Equal(t, PartitionHash(k), PartitionHash(append([]byte(nil), k...)))
	assert.NotEqual(t, HashKeyHash([]byte("user1")), HashKeyHash([]byte("user2")))
}

func TestEncodeSuccessor(t *testing.T) {
	tests := []struct {
		name     string
		hashKey  []byte
		expected []byte
		// next is the smallest encoded key of the following group
		next []byte
	}{
		{
			name:     "plain",
			hashKey:  []byte("ab"),
			expected: []byte{0x00, 0x02, 'a', 'c'},
			next:     []byte{0x00, 0x02, 'a', 'c'},
		},
		{
			name:     "trailing 0xFF",
			hashKey:  []byte{'a', 0xFF},
			expected: []byte{0x00, 0x02, 'b'},
			next:     []byte{0x00, 0x02, 'b', 0x00},
		},
		{
			name:     "empty hash key",
			hashKey:  nil,
			expected: []byte{0x00, 0x01},
			next:     []byte{0x00, 0x01, 0x00},
		},
		{
			name:     "all 0xFF",
			hashKey:  []byte{0xFF, 0xFF},
			expected: []byte{0x00, 0x03},
			next:     []byte{0x00, 0x03, 0x00, 0x00, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			succ, err := EncodeSuccessor(tt.hashKey)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, succ)

			// strictly greater than every key of the group
			for _, sortKey := range [][]byte{nil, []byte("a"), {0xFF, 0xFF, 0xFF, 0xFF}, bytes.Repeat([]byte{0xFF}, 64)} {
				k, err := Encode(tt.hashKey, sortKey)
				require.NoError(t, err)
				assert.Equal(t, 1, bytes.Compare(succ, k), "successor must be greater than %x", k)
			}

			// not greater than the first key of the next group
			assert.LessOrEqual(t, bytes.Compare(succ, tt.next), 0)
		})
	}
}

func TestEncodeSuccessorOfLastGroup(t *testing.T) {
	hashKey := bytes.Repeat([]byte{0xFF}, MaxHashKeyLen-1)

	succ, err := EncodeSuccessor(hashKey)
	require.NoError(t, err)
	assert.Empty(t, succ)

	start, err := Encode(hashKey, nil)
	require.NoError(t, err)
	assert.True(t, RangeEligible(start, true, succ, false))
}

func TestRangeEligible(t *testing.T) {
	a := []byte{0x00, 0x01, 'a'}
	b := []byte{0x00, 0x01, 'b'}

	assert.True(t, RangeEligible(a, true, b, false))
	assert.True(t, RangeEligible(a, false, b, false))
	assert.False(t, RangeEligible(b, true, a, true))

	// equal bounds
	assert.True(t, RangeEligible(a, true, a, true))
	assert.False(t, RangeEligible(a, false, a, false))
	assert.False(t, RangeEligible(a, true, a, false))
	assert.False(t, RangeEligible(a, false, a, true))

	// a prefix sorts before its extension
	assert.True(t, RangeEligible(a, false, append(append([]byte(nil), a...), 0x00), false))

	// empty stop is unbounded
	assert.True(t, RangeEligible(b, false, nil, false))
	assert.True(t, RangeEligible(b, true, []byte{}, true))
}
