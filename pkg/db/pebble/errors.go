package pebble

import (
	"errors"

	"github.com/eigerco/kvrange/pkg/db"
)

const (
	ErrInCursorCreation = "failed to create cursor: %w"
	ErrCursorValue      = "failed to read cursor value: %w"
)

var (
	ErrClosed        = db.ErrClosed
	ErrNotFound      = db.ErrNotFound
	ErrInvalidKey    = db.ErrInvalidKey
	ErrBatchDone     = errors.New("kv-store: batch already committed or closed")
	ErrCursorInvalid = errors.New("kv-store: cursor is not positioned")
)
