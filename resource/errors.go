package resource

import "errors"

// ErrInvalidResourceName is returned by Parse for any string the grammar of
// spec.md §4.1 rejects. It maps 1:1 onto visa.InvalidResourceName.
var ErrInvalidResourceName = errors.New("invalid resource name")
