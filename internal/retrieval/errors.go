package retrieval

import "errors"

// ErrInvalidQuery indicates a malformed search request: an empty query or a
// non-positive result count. It is surfaced to the caller as a client error
// and never cached.
var ErrInvalidQuery = errors.New("invalid query")
