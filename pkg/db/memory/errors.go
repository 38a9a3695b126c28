package memory

import "errors"

var (
	ErrBatchDone     = errors.New("kv-store: batch already committed or closed")
	ErrCursorInvalid = errors.New("kv-store: cursor is not positioned")
)
