// Package frame reads and writes length-prefixed messages on a stream.
package frame

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxSize bounds the content a reader accepts unless told otherwise.
const DefaultMaxSize = 16 << 20

var ErrTooLarge = errors.New("frame: message too large")

// Message is one frame: a little-endian uint32 size followed by Size bytes of
// content.
type Message struct {
	Size    uint32
	Content []byte
}

type result struct {
	msg *Message
	err error
}

// Write writes content as one frame. It returns early with ctx.Err() when ctx
// is done; the write itself then finishes in the background.
func Write(ctx context.Context, w io.Writer, content []byte) error {
	done := make(chan error, 1)
	go func() {
		done <- write(w, content)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func write(w io.Writer, content []byte) error {
	buf := make([]byte, 4+len(content))
	binary.LittleEndian.PutUint32(buf, uint32(len(content)))
	copy(buf[4:], content)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Read reads one frame of at most maxSize content bytes. Like Write it stops
// waiting when ctx is done.
func Read(ctx context.Context, r io.Reader, maxSize uint32) (*Message, error) {
	done := make(chan result, 1)
	go func() {
		msg, err := read(r, maxSize)
		done <- result{msg: msg, err: err}
	}()

	select {
	case res := <-done:
		return res.msg, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func read(r io.Reader, maxSize uint32) (*Message, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, fmt.Errorf("failed to read message size: %w", err)
	}
	size := binary.LittleEndian.Uint32(head[:])
	if size > maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooLarge, size, maxSize)
	}

	content := make([]byte, size)
	if _, err := io.ReadFull(r, content); err != nil {
		return nil, fmt.Errorf("failed to read message content: %w", err)
	}
	return &Message{Size: size, Content: content}, nil
}
