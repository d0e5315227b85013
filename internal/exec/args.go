package exec

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by SanitizeArgument. Arguments are screened less
// strictly than the executable value itself: leading dashes and quote
// characters are legitimate in arguments, so only null bytes, line breaks
// (CR, LF), and shell metacharacters are rejected. Tabs and other control
// characters pass.
var (
	ErrEmptyArgument         = errors.New("argument is empty")
	ErrArgumentNullByte      = errors.New("argument contains null byte")
	ErrArgumentControlChar   = errors.New("argument contains control characters")
	ErrArgumentShellMetachar = errors.New("argument contains shell metacharacters")
)

// classifyArgument is the shared check behind IsSafeArgument and
// SanitizeArgument.
func classifyArgument(arg string) error {
	switch {
	case strings.Contains(arg, "\x00"):
		return ErrArgumentNullByte
	case ctrlCharPattern.MatchString(arg):
		return ErrArgumentControlChar
	case metacharPattern.MatchString(arg):
		return ErrArgumentShellMetachar
	}
	return nil
}

// IsSafeArgument reports whether arg is safe to pass as a command
// argument: non-empty, no null bytes, no CR or LF, no shell
// metacharacters.
func IsSafeArgument(arg string) bool {
	if arg == "" {
		return false
	}
	return classifyArgument(arg) == nil
}

// SanitizeArgument validates arg the way IsSafeArgument does, returning it
// unchanged or the specific error that rejected it.
func SanitizeArgument(arg string) (string, error) {
	if arg == "" {
		return "", ErrEmptyArgument
	}
	if err := classifyArgument(arg); err != nil {
		return "", err
	}
	return arg, nil
}

// SanitizeArguments validates every element of args in order, stopping at
// the first rejection.
func SanitizeArguments(args []string) ([]string, error) {
	if args == nil {
		return nil, nil
	}
	out := make([]string, 0, len(args))
	for i, arg := range args {
		sanitized, err := SanitizeArgument(arg)
		if err != nil {
			return nil, &ArgumentError{Index: i, Arg: arg, Err: err}
		}
		out = append(out, sanitized)
	}
	return out, nil
}

// ArgumentError identifies which positional argument in a SanitizeArguments
// call failed validation and why.
type ArgumentError struct {
	Index int
	Arg   string
	Err   error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %d is unsafe: %v", e.Index, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}
