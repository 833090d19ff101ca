package template

import "fmt"

// Error is implemented by every error this package returns. Position.File
// holds the macro name the body was compiled under.
type Error interface {
	error
	Position() Position
}

type macroError struct {
	pos   Position
	stage string
	msg   string
}

func (e *macroError) Position() Position { return e.pos }

// Error reads as `macro PARK line 3 col 5: syntax error: ...`. Bodies
// compiled without a name drop the macro prefix.
func (e *macroError) Error() string {
	where := fmt.Sprintf("line %d col %d", e.pos.Line, e.pos.Column)
	if e.pos.File != "" {
		where = fmt.Sprintf("macro %s %s", e.pos.File, where)
	}
	return fmt.Sprintf("%s: %s: %s", where, e.stage, e.msg)
}

// LexError reports a body that could not be split into text, expression
// and statement tokens.
type LexError struct {
	macroError
}

// NewLexError creates a new lexer error.
func NewLexError(pos Position, msg string) *LexError {
	return &LexError{macroError{pos: pos, stage: "syntax error", msg: msg}}
}

// ParseError reports a malformed statement.
type ParseError struct {
	macroError
}

// NewParseErrorf creates a new parser error with formatting.
func NewParseErrorf(pos Position, format string, args ...any) *ParseError {
	return &ParseError{macroError{pos: pos, stage: "invalid statement", msg: fmt.Sprintf(format, args...)}}
}

// RenderError reports a failure while expanding a compiled body.
type RenderError struct {
	macroError
	Cause error // starlark evaluation error, if any
}

// NewRenderErrorf creates a new render error with formatting.
func NewRenderErrorf(pos Position, format string, args ...any) *RenderError {
	return &RenderError{macroError: macroError{pos: pos, stage: "render failed", msg: fmt.Sprintf(format, args...)}}
}

// WrapRenderError attaches the evaluation error behind a failed expression.
func WrapRenderError(pos Position, msg string, cause error) *RenderError {
	return &RenderError{
		macroError: macroError{pos: pos, stage: "render failed", msg: msg},
		Cause:      cause,
	}
}

func (e *RenderError) Error() string {
	if e.Cause == nil {
		return e.macroError.Error()
	}
	return fmt.Sprintf("%s: %v", e.macroError.Error(), e.Cause)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// UnmatchedBlockError reports an if/for block that is never closed, or a
// closing keyword with nothing open.
type UnmatchedBlockError struct {
	macroError
	BlockKind StmtKind
}

var unmatchedMessages = map[StmtKind]string{
	StmtFor:    "'for' is never closed by 'endfor'",
	StmtIf:     "'if' is never closed by 'endif'",
	StmtEndFor: "'endfor' has no open 'for'",
	StmtEndIf:  "'endif' has no open 'if'",
	StmtElse:   "'else' has no open 'if'",
	StmtElif:   "'elif' has no open 'if'",
}

// NewUnmatchedBlockError creates a new unmatched block error.
func NewUnmatchedBlockError(pos Position, kind StmtKind) *UnmatchedBlockError {
	msg, ok := unmatchedMessages[kind]
	if !ok {
		msg = fmt.Sprintf("stray %s statement", kind)
	}
	return &UnmatchedBlockError{
		macroError: macroError{pos: pos, stage: "unbalanced block", msg: msg},
		BlockKind:  kind,
	}
}
