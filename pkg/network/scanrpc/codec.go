package scanrpc

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/eigerco/kvrange/pkg/scan"
)

// Frame kinds, the first byte of every response frame.
const (
	kindDone  byte = 0x00
	kindEntry byte = 0x01
	kindError byte = 0x02
)

var (
	ErrMalformed = errors.New("scanrpc: malformed frame")
	// ErrRemote wraps a failure reported by the server.
	ErrRemote = errors.New("scanrpc: remote error")
)

// encodeEntry lays out kindEntry | u32 key length | key | value.
func encodeEntry(e scan.Entry) []byte {
	buf := make([]byte, 5+len(e.Key)+len(e.Value))
	buf[0] = kindEntry
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(e.Key)))
	n := copy(buf[5:], e.Key)
	copy(buf[5+n:], e.Value)
	return buf
}

func encodeError(err error) []byte {
	return append([]byte{kindError}, err.Error()...)
}

// decode interprets one response frame. done is true for the final frame.
func decode(content []byte) (e scan.Entry, done bool, err error) {
	if len(content) == 0 {
		return e, false, fmt.Errorf("%w: empty", ErrMalformed)
	}
	switch content[0] {
	case kindDone:
		return e, true, nil
	case kindError:
		return e, true, fmt.Errorf("%w: %s", ErrRemote, content[1:])
	case kindEntry:
		if len(content) < 5 {
			return e, false, fmt.Errorf("%w: short entry header", ErrMalformed)
		}
		klen := binary.LittleEndian.Uint32(content[1:5])
		if uint64(klen) > uint64(len(content)-5) {
			return e, false, fmt.Errorf("%w: key length %d exceeds frame", ErrMalformed, klen)
		}
		body := content[5:]
		return scan.Entry{Key: body[:klen:klen], Value: body[klen:]}, false, nil
	default:
		return e, false, fmt.Errorf("%w: unknown kind 0x%02x", ErrMalformed, content[0])
	}
}
