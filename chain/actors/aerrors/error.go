package aerrors

import (
	"fmt"

	"github.com/filecoin-project/go-state-types/exitcode"
	"golang.org/x/xerrors"
)

func IsFatal(err ActorError) bool {
	return err != nil && err.IsFatal()
}

func RetCode(err ActorError) exitcode.ExitCode {
	if err == nil {
		return 0
	}
	return err.RetCode()
}

type ActorError interface {
	error
	IsFatal() bool
	RetCode() exitcode.ExitCode
}

type actorError struct {
	fatal   bool
	retCode exitcode.ExitCode

	msg   string
	frame xerrors.Frame
	err   error
}

func (a *actorError) IsFatal() bool {
	return a.fatal
}

func (a *actorError) RetCode() exitcode.ExitCode {
	return a.retCode
}

func (a *actorError) Error() string {
	return fmt.Sprint(a)
}

func (a *actorError) Format(s fmt.State, v rune) { xerrors.FormatError(a, s, v) }

func (a *actorError) FormatError(p xerrors.Printer) (next error) {
	p.Print(a.msg)
	if a.fatal {
		p.Print(" (FATAL)")
	} else {
		p.Printf(" (RetCode=%d)", a.retCode)
	}

	a.frame.Format(p)
	return a.err
}

func (a *actorError) Unwrap() error {
	return a.err
}
