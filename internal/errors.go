package nativeclass

import (
	"strings"
)

// Phase indicates where in the class lifecycle the error occurred.
type Phase string

const (
	PhaseRegistration   Phase = "registration"   // process-wide class registration
	PhaseInitialization Phase = "initialization" // initializer populating a ClassInfo
	PhaseLookup         Phase = "lookup"         // resolving a class for an engine
	PhaseConstruction   Phase = "construction"   // creating an instance
	PhaseRuntime        Phase = "runtime"        // engine operations
)

// Kind categorizes the error.
type Kind string

const (
	KindDuplicate          Kind = "duplicate"
	KindInvalidInput       Kind = "invalid_input"
	KindNotReady           Kind = "not_ready"
	KindTornDown           Kind = "torn_down"
	KindNotFound           Kind = "not_found"
	KindWrongType          Kind = "wrong_type"
	KindIllegalConstructor Kind = "illegal_constructor"
)

// Error is the structured error type of this package. Programmer errors
// (duplicate registration, registering outside of the initializer, use before
// ready) are raised with panic(*Error); recoverable conditions are returned.
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Class  string
	Member string
	Detail string
}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Class != "" {
		b.WriteString(" for class ")
		b.WriteString(e.Class)
		if e.Member != "" {
			b.WriteByte('.')
			b.WriteString(e.Member)
		}
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same phase and kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

var (
	ErrDuplicateClass     = &Error{Phase: PhaseRegistration, Kind: KindDuplicate}
	ErrClassNotFound      = &Error{Phase: PhaseLookup, Kind: KindNotFound}
	ErrNotReady           = &Error{Phase: PhaseInitialization, Kind: KindNotReady}
	ErrTornDown           = &Error{Phase: PhaseRuntime, Kind: KindTornDown}
	ErrIllegalConstructor = &Error{Phase: PhaseConstruction, Kind: KindIllegalConstructor}
)

func newError(phase Phase, kind Kind, class, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Class:  class,
		Detail: detail,
	}
}

func memberError(phase Phase, kind Kind, class, member, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Class:  class,
		Member: member,
		Detail: detail,
	}
}
