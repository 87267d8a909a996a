// Package transport defines the delivery-channel contract the posting
// controller depends on: one Post operation and a tri-state failure
// classification. Transport details (API version, auth scheme) stay in
// the channel implementations.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a delivery failure. The controller's retry policy
// depends only on this classification, decided by the channel at the point
// of failure.
type ErrorKind int

const (
	// KindOther covers everything that isn't a rate limit or an auth
	// rejection: 5xx, malformed responses, network errors.
	KindOther ErrorKind = iota
	// KindRateLimited means the platform temporarily refuses requests for
	// this identity. Recoverable with backoff.
	KindRateLimited
	// KindAuth means the credentials or the access tier were rejected.
	// Retrying the same channel won't help.
	KindAuth
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindAuth:
		return "auth"
	default:
		return "other"
	}
}

// Error is a classified delivery failure from one channel.
type Error struct {
	Channel string
	Kind    ErrorKind
	Status  int    // HTTP status, 0 when the request never completed
	Detail  string // short response excerpt, safe to log

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Channel, e.Kind, e.Err)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Channel, e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Channel, e.Kind, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the classification from an error chain.
// Unclassified errors count as KindOther.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindOther
}

func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimited }

// PostReceipt identifies a successfully delivered post.
type PostReceipt struct {
	Channel string
	ID      string
}

// Channel is one concrete delivery path to the platform.
//
// Post must return either a receipt or an *Error; channels never block
// beyond ctx. Implementations are not safe for concurrent conflicting
// writes with shared credentials; the caller serializes cycles.
type Channel interface {
	Name() string
	Post(ctx context.Context, text string) (PostReceipt, error)
}
