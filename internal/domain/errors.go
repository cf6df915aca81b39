package domain

import (
	"errors"
	"fmt"
)

// FetchKind classifies why a weather fetch produced no record.
type FetchKind int

const (
	KindOffline FetchKind = iota + 1
	KindNetwork
	KindStatus
	KindDecode
)

func (k FetchKind) String() string {
	switch k {
	case KindOffline:
		return "offline"
	case KindNetwork:
		return "network"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Sentinels matched through errors.Is against a *FetchError of the same kind.
var (
	ErrOffline = errors.New("no network connection")
	ErrNetwork = errors.New("weather request failed")
	ErrStatus  = errors.New("weather API returned an error status")
	ErrDecode  = errors.New("weather response could not be decoded")
)

// FetchError is returned by weather fetchers alongside the empty record.
type FetchError struct {
	Kind       FetchKind
	StatusCode int // set for KindStatus
	Err        error
}

// NewFetchError wraps err with the given kind.
func NewFetchError(kind FetchKind, err error) *FetchError {
	return &FetchError{Kind: kind, Err: err}
}

func (e *FetchError) Error() string {
	switch {
	case e.Kind == KindStatus:
		return fmt.Sprintf("weather fetch: status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("weather fetch (%s): %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("weather fetch (%s)", e.Kind)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches the kind sentinels so callers can write errors.Is(err, ErrDecode).
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrOffline:
		return e.Kind == KindOffline
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrStatus:
		return e.Kind == KindStatus
	case ErrDecode:
		return e.Kind == KindDecode
	}
	return false
}

// KindOf extracts the FetchKind from err, or 0 when err is nil or untyped.
func KindOf(err error) FetchKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// ParseFetchKind is the inverse of FetchKind.String. Unknown names yield 0.
func ParseFetchKind(s string) FetchKind {
	for _, k := range []FetchKind{KindOffline, KindNetwork, KindStatus, KindDecode} {
		if k.String() == s {
			return k
		}
	}
	return 0
}
