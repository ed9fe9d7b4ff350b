// Package errors implements the mesh similarity error taxonomy and the
// propagation behaviour attached to each kind.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how far it is allowed to travel.
type Kind int

const (
	// KindNotFound indicates an identifier that does not resolve to an asset.
	KindNotFound Kind = iota

	// KindDecode indicates an asset that exists but cannot be parsed into geometry.
	KindDecode

	// KindComparison indicates a failed external scorer invocation for one
	// candidate, including timeouts and unparseable output.
	KindComparison

	// KindScanWarning indicates a directory-scan anomaly for a single file.
	KindScanWarning

	// KindNoCandidates indicates a similarity request in which no candidate
	// was successfully scored.
	KindNoCandidates

	// KindInvalidInput indicates a malformed request (unknown algorithm, bad k).
	KindInvalidInput
)

var kindNames = map[Kind]string{
	KindNotFound:     "not_found",
	KindDecode:       "decode",
	KindComparison:   "comparison",
	KindScanWarning:  "scan_warning",
	KindNoCandidates: "no_candidates",
	KindInvalidInput: "invalid_input",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// KindBehavior defines how an error of a given kind is handled.
type KindBehavior struct {
	// Propagates is true when the error aborts the top-level request.
	Propagates bool

	// ClientVisible is true when the error is reported to the caller as a
	// client failure rather than absorbed.
	ClientVisible bool

	// Retryable is always false in this taxonomy; kept explicit so callers
	// never need to guess.
	Retryable bool
}

// DefaultBehaviors returns the behaviour table for each kind.
func DefaultBehaviors() map[Kind]KindBehavior {
	return map[Kind]KindBehavior{
		KindNotFound:     {Propagates: true, ClientVisible: true},
		KindDecode:       {Propagates: true, ClientVisible: true},
		KindComparison:   {Propagates: false, ClientVisible: false},
		KindScanWarning:  {Propagates: false, ClientVisible: false},
		KindNoCandidates: {Propagates: true, ClientVisible: true},
		KindInvalidInput: {Propagates: true, ClientVisible: true},
	}
}

// Error is a classified error carrying the operation and the model
// identifier it concerns.
type Error struct {
	Kind Kind
	Op   string
	ID   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Op)
	if e.ID != "" {
		msg += " " + e.ID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

// New creates a classified error.
func New(kind Kind, op, id string, err error) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Err: err}
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound     = &Error{Kind: KindNotFound, Op: "not found"}
	ErrDecode       = &Error{Kind: KindDecode, Op: "decode"}
	ErrComparison   = &Error{Kind: KindComparison, Op: "comparison"}
	ErrScanWarning  = &Error{Kind: KindScanWarning, Op: "scan"}
	ErrNoCandidates = &Error{Kind: KindNoCandidates, Op: "no candidates evaluated"}
	ErrInvalidInput = &Error{Kind: KindInvalidInput, Op: "invalid input"}
)

// NotFound returns a KindNotFound error for id.
func NotFound(op, id string, err error) error {
	return New(KindNotFound, op, id, err)
}

// Decode returns a KindDecode error for id.
func Decode(op, id string, err error) error {
	return New(KindDecode, op, id, err)
}

// Comparison returns a KindComparison error for id.
func Comparison(op, id string, err error) error {
	return New(KindComparison, op, id, err)
}

// ScanWarning returns a KindScanWarning error for path.
func ScanWarning(op, path string, err error) error {
	return New(KindScanWarning, op, path, err)
}

// InvalidInput returns a KindInvalidInput error.
func InvalidInput(op string, err error) error {
	return New(KindInvalidInput, op, "", err)
}

// GetKind extracts the Kind from an error. Unclassified errors report ok=false.
func GetKind(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// GetBehavior returns the behaviour for an error's kind. Unclassified errors
// propagate.
func GetBehavior(err error) KindBehavior {
	kind, ok := GetKind(err)
	if !ok {
		return KindBehavior{Propagates: true}
	}
	return DefaultBehaviors()[kind]
}

// Propagates reports whether err should abort the top-level request.
func Propagates(err error) bool {
	return GetBehavior(err).Propagates
}

// Wrap classifies err under kind unless it already carries a kind, in which
// case the existing kind is preserved.
func Wrap(kind Kind, op, id string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return &Error{Kind: e.Kind, Op: op, ID: id, Err: err}
	}
	return New(kind, op, id, err)
}
