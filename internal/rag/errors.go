package rag

import "errors"

// ErrAssetNotFound reports a reference to a document that was never
// indexed or has been removed.
var ErrAssetNotFound = errors.New("asset not found")
