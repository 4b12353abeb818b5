package errs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	pkgerr "github.com/pkg/errors"
)

// CodeError is the unit of the service error taxonomy. Matching is by
// code, so wrapped copies with extra detail still satisfy errors.Is
// against the sentinel value.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

func (e *CodeError) clone() *CodeError {
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: e.Detail}
}

func (e *CodeError) WithDetail(detail string) *CodeError {
	c := e.clone()
	if c.Detail == "" {
		c.Detail = detail
	} else {
		c.Detail += ", " + detail
	}
	return c
}

// Wrap returns the error with a captured stack.
func (e *CodeError) Wrap() error {
	return pkgerr.WithStack(e)
}

// WrapMsg clones the error, appends formatted detail and captures a stack.
func (e *CodeError) WrapMsg(msg string, kv ...any) error {
	c := e.clone()
	if msg != "" || len(kv) > 0 {
		d := toString(msg, kv)
		if c.Detail == "" {
			c.Detail = d
		} else {
			c.Detail += ", " + d
		}
	}
	return pkgerr.WithStack(c)
}

// Is reports whether err carries the same code anywhere in its chain.
// The signature doubles as the errors.Is interface hook.
func (e *CodeError) Is(err error) bool {
	var ce *CodeError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == e.Code
}

// CodeOf extracts the taxonomy code from an error chain; 0 when uncoded.
func CodeOf(err error) int {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return 0
}

// New builds an uncoded error with optional kv detail and a stack.
func New(msg string, kv ...any) error {
	return pkgerr.New(toString(msg, kv))
}

// Wrap attaches a stack to err, once.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return pkgerr.WithStack(err)
}

// WrapMsg annotates err with a message plus kv pairs and a stack.
func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return pkgerr.WithStack(pkgerr.WithMessage(err, toString(msg, kv)))
}

func toString(msg string, kv []any) string {
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%v", kv[i]))
		sb.WriteString("=")
		if i+1 < len(kv) {
			sb.WriteString(fmt.Sprintf("%v", kv[i+1]))
		} else {
			sb.WriteString("<missing>")
		}
	}
	return sb.String()
}
