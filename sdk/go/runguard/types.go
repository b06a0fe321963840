package runguard

import (
	"io"

	"github.com/runguard/runguard/internal/failtrap"
	"github.com/runguard/runguard/internal/history"
	"github.com/runguard/runguard/internal/runner"
	"github.com/runguard/runguard/internal/validate"
)

// Kind names a category of validation or runtime failure.
type Kind = validate.Kind

const (
	KindMissingDependency = validate.KindMissingDependency
	KindInvalidHostname   = validate.KindInvalidHostname
	KindUnsafeInput       = validate.KindUnsafeInput
	KindInputTooLong      = validate.KindInputTooLong
	KindPathTraversal     = validate.KindPathTraversal
	KindInvalidPath       = validate.KindInvalidPath
	KindUnhandledFailure  = validate.KindUnhandledFailure
)

// ValidationError is the typed failure every check returns. Embedders can
// match it with errors.As without importing internal packages; the alias
// keeps identity with the errors the checks actually produce.
type ValidationError = validate.Error

// KindOf extracts the failure kind from err. Foreign non-nil errors map to
// KindUnhandledFailure; nil maps to the empty Kind.
func KindOf(err error) Kind {
	return validate.KindOf(err)
}

// Command describes an intended subprocess invocation.
type Command struct {
	Name  string
	Args  []string
	Stdin io.Reader
}

// Result captures subprocess execution outcome.
type Result = runner.Result

// BlockedError is returned when the allow-list refuses a command.
type BlockedError = runner.BlockedError

// Trap is a one-shot failure trap for the calling execution context.
type Trap = failtrap.Trap

// Run is one recorded invocation outcome from the history store.
type Run = history.Run
