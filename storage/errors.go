package storage

import "errors"

// Storage-layer sentinel errors, following the donor's flat
// errors.New convention (internal/util/errors.go).
var (
	ErrKeyNotFound        = errors.New("key not found")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrDocumentNotFound   = errors.New("document not found")
)
