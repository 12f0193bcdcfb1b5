package keybackend

import "errors"

// ErrKeyNotFound is returned when the access key does not exist in the store.
// It always accompanies bucketry.ErrUnauthorized.
var ErrKeyNotFound = errors.New("access key not found")
