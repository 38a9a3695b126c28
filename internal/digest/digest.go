// Package digest fingerprints a range of entries, so two stores (or one store
// at two points in time) can be compared without shipping the data.
package digest

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"

	"github.com/eigerco/kvrange/pkg/scan"
)

const Size = blake2b.Size256

type Hash [Size]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Sum hashes every entry of seq with blake2b-256. Each entry contributes its
// key and value, both prefixed by a little-endian uint32 length; the entry
// count is appended as a uint64 at the end, so an empty range has a digest too.
func Sum(seq *scan.Seq[scan.Entry]) (Hash, int, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return Hash{}, 0, fmt.Errorf("digest: %w", err)
	}

	n := 0
	err = seq.Each(func(e scan.Entry) error {
		n++
		writeField(h, e.Key)
		writeField(h, e.Value)
		return nil
	})
	if err != nil {
		return Hash{}, 0, fmt.Errorf("digest: %w", err)
	}

	var count [8]byte
	binary.LittleEndian.PutUint64(count[:], uint64(n))
	h.Write(count[:])

	var out Hash
	copy(out[:], h.Sum(nil))
	return out, n, nil
}

func writeField(h hash.Hash, b []byte) {
	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(b)))
	h.Write(l[:])
	h.Write(b)
}
