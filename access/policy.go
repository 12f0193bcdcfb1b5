// Package access decides which anonymous requests may proceed.
package access

import (
	"context"
	"fmt"

	"github.com/sagarc03/bucketry"
)

// Mode is either Public or Private.
type Mode string

const (
	// Public allows anonymous callers.
	Public Mode = "public"
	// Private requires a verified signature.
	Private Mode = "private"
)

// ParseMode parses a mode name. The empty string is Private.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Public:
		return Public, nil
	case Private, "":
		return Private, nil
	default:
		return "", fmt.Errorf("access mode %q: %w", s, bucketry.ErrInvalidInput)
	}
}

// Policy implements bucketry.Access. Authenticated callers are always
// allowed. Anonymous callers are allowed according to Read for read-only
// operations and Write for operations that modify state.
type Policy struct {
	Read  Mode
	Write Mode
}

var _ bucketry.Access = Policy{}

// NewPolicy builds a policy from mode names.
func NewPolicy(read, write string) (Policy, error) {
	r, err := ParseMode(read)
	if err != nil {
		return Policy{}, err
	}
	w, err := ParseMode(write)
	if err != nil {
		return Policy{}, err
	}
	return Policy{Read: r, Write: w}, nil
}

// Check allows or denies req.
func (p Policy) Check(_ context.Context, req *bucketry.AccessRequest) error {
	if req.Credentials != nil {
		return nil
	}

	mode := p.Read
	if req.Operation.IsWrite() {
		mode = p.Write
	}

	if mode == Public {
		return nil
	}

	return bucketry.NewError(bucketry.ErrCodeAccessDenied).WithResource(resource(req))
}

// RequiresAuth reports whether any operation class is private.
func (p Policy) RequiresAuth() bool {
	return p.Read != Public || p.Write != Public
}

func resource(req *bucketry.AccessRequest) string {
	switch {
	case req.Bucket == "":
		return "/"
	case req.Key == "":
		return "/" + req.Bucket
	default:
		return "/" + req.Bucket + "/" + req.Key
	}
}
