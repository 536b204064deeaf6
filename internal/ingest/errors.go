// Package ingest defines the failure taxonomy shared by every stage of the
// fetch, parse, reformat and unify pipeline.
package ingest

import (
	"errors"
	"fmt"
	"strings"
)

type Stage string

const (
	StageFetch    Stage = "fetch"
	StageParse    Stage = "parse"
	StageReformat Stage = "reformat"
	StageUnify    Stage = "unify"
)

type Kind string

const (
	KindUnreachable    Kind = "unreachable"
	KindNotFound       Kind = "not_found"
	KindMalformed      Kind = "malformed"
	KindMissingColumn  Kind = "missing_column"
	KindUnparsableDate Kind = "unparsable_date"
)

// Sentinels usable with errors.Is against any *Error of the matching kind.
var (
	ErrUnreachable    = errors.New("ingest: source unreachable")
	ErrNotFound       = errors.New("ingest: source not found")
	ErrMalformed      = errors.New("ingest: malformed payload")
	ErrMissingColumn  = errors.New("ingest: missing column")
	ErrUnparsableDate = errors.New("ingest: unparsable date")
)

var sentinels = map[Kind]error{
	KindUnreachable:    ErrUnreachable,
	KindNotFound:       ErrNotFound,
	KindMalformed:      ErrMalformed,
	KindMissingColumn:  ErrMissingColumn,
	KindUnparsableDate: ErrUnparsableDate,
}

// Error reports which pipeline stage failed and why.
type Error struct {
	Stage  Stage
	Kind   Kind
	Source string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed (%s)", e.Stage, e.Kind)
	if e.Source != "" {
		fmt.Fprintf(&b, " source=%s", e.Source)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	sentinel, ok := sentinels[e.Kind]
	return ok && sentinel == target
}

func Unreachable(source string, err error, format string, args ...any) *Error {
	return newError(StageFetch, KindUnreachable, source, err, format, args...)
}

func NotFound(source string, err error, format string, args ...any) *Error {
	return newError(StageFetch, KindNotFound, source, err, format, args...)
}

func Malformed(err error, format string, args ...any) *Error {
	return newError(StageParse, KindMalformed, "", err, format, args...)
}

func MissingColumn(provider, column string) *Error {
	return &Error{
		Stage:  StageReformat,
		Kind:   KindMissingColumn,
		Detail: fmt.Sprintf("%s: column %q not present", provider, column),
	}
}

func UnparsableDate(column string, row int, value string) *Error {
	return &Error{
		Stage:  StageUnify,
		Kind:   KindUnparsableDate,
		Detail: fmt.Sprintf("column %q row %d: cannot interpret %q as a date", column, row, value),
	}
}

// StageOf returns the stage of the first *Error in err's chain.
func StageOf(err error) (Stage, bool) {
	var ingestErr *Error
	if errors.As(err, &ingestErr) {
		return ingestErr.Stage, true
	}
	return "", false
}

func newError(stage Stage, kind Kind, source string, err error, format string, args ...any) *Error {
	detail := format
	if len(args) > 0 {
		detail = fmt.Sprintf(format, args...)
	}
	return &Error{
		Stage:  stage,
		Kind:   kind,
		Source: source,
		Detail: detail,
		Err:    err,
	}
}
