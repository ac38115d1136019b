package hash

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/starkforge/starkforge/internal/starkforge/field"
)

// DigestLen is the number of field elements carried by a digest.
const DigestLen = 5

// Digest is the output of hashing a sequence of field elements: a fixed
// 5-element tuple, the sponge's output width (half its 10-element rate).
type Digest [DigestLen]field.Element

func NewDigest(elements [DigestLen]field.Element) Digest {
	return Digest(elements)
}

func ZeroDigest() Digest {
	return Digest{}
}

func (d Digest) Values() [DigestLen]field.Element {
	return [DigestLen]field.Element(d)
}

// Reversed returns the digest with its elements in reverse order; applying
// it twice is the identity.
func (d Digest) Reversed() Digest {
	var out Digest
	for i := range d {
		out[i] = d[DigestLen-1-i]
	}
	return out
}

func (d Digest) Equal(other Digest) bool {
	for i := range d {
		if !d[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

func (d Digest) IsZero() bool {
	for _, e := range d {
		if !e.IsZero() {
			return false
		}
	}
	return true
}

func (d Digest) String() string {
	parts := make([]string, DigestLen)
	for i, e := range d {
		parts[i] = e.String()
	}
	return strings.Join(parts, ",")
}

func (d Digest) Hex() string {
	bytes := d.ToBytes()
	return hex.EncodeToString(bytes[:])
}

// ToBytes packs the digest's five elements as little-endian uint64s.
func (d Digest) ToBytes() [DigestLen * 8]byte {
	var out [DigestLen * 8]byte
	for i, e := range d {
		binary.LittleEndian.PutUint64(out[i*8:(i+1)*8], e.Value())
	}
	return out
}

func DigestFromBytes(bytes [DigestLen * 8]byte) Digest {
	var d Digest
	for i := range d {
		d[i] = field.New(binary.LittleEndian.Uint64(bytes[i*8 : (i+1)*8]))
	}
	return d
}

func DigestFromHex(s string) (Digest, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ZeroDigest(), fmt.Errorf("invalid hex string: %w", err)
	}
	if len(raw) != DigestLen*8 {
		return ZeroDigest(), fmt.Errorf("invalid hex digest length: expected %d bytes, got %d", DigestLen*8, len(raw))
	}
	var fixed [DigestLen * 8]byte
	copy(fixed[:], raw)
	return DigestFromBytes(fixed), nil
}

// Less orders digests most-significant element first, i.e. by d[4] first
// and d[0] last.
func (d Digest) Less(other Digest) bool {
	for i := DigestLen - 1; i >= 0; i-- {
		switch {
		case d[i].Less(other[i]):
			return true
		case d[i].Greater(other[i]):
			return false
		}
	}
	return false
}

func (d Digest) Greater(other Digest) bool {
	return other.Less(d)
}

func (d Digest) Clone() Digest {
	return d
}
