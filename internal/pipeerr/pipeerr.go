// Package pipeerr implements the error taxonomy from spec §7: a small set of
// named Kinds (not Go types) with a recoverability policy, adapted from
// alnah-go-transcript's sentinel-error-to-exit-code dispatch pattern
// (cmd/transcript/main.go's exitCode/errors.Is chain) but built around one
// structured error value carrying the Kind.
package pipeerr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	MediaProbe           Kind = "MediaProbe"
	MediaExtract         Kind = "MediaExtract"
	MediaMux             Kind = "MediaMux"
	VADUnavailable       Kind = "VADUnavailable"
	ASRChunkFailed       Kind = "ASRChunkFailed"
	TranslationBatchFailed Kind = "TranslationBatchFailed"
	ReviewBatchRejected  Kind = "ReviewBatchRejected"
	TTSFailed            Kind = "TTSFailed"
	DubFitFailed         Kind = "DubFitFailed"
	Cancelled            Kind = "Cancelled"
)

// Error is the core's error envelope. OperationID/Stage are optional
// context for logging; Cause is the underlying error, if any.
type Error struct {
	Kind        Kind
	OperationID string
	Stage       string
	Cause       error
}

func New(kind Kind, opID, stage string, cause error) *Error {
	return &Error{Kind: kind, OperationID: opID, Stage: stage, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s[%s/%s]: %v", e.Kind, e.OperationID, e.Stage, e.Cause)
	}
	return fmt.Sprintf("%s[%s/%s]", e.Kind, e.OperationID, e.Stage)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the Kind from err, if it (or anything it wraps) is a
// *pipeerr.Error.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// Fatal reports whether a Kind prevents the pipeline from making forward
// progress at all (spec §7's propagation policy). Everything else is
// recovered locally where a partial result is still useful.
func Fatal(k Kind) bool {
	switch k {
	case MediaProbe, MediaExtract, MediaMux, VADUnavailable:
		return true
	case Cancelled:
		return true // short-circuits every loop, but is not reported as a failure
	default:
		return false
	}
}

// IsCancelled reports whether err represents cooperative cancelation.
func IsCancelled(err error) bool {
	k, ok := KindOf(err)
	return ok && k == Cancelled
}
