// Package template implements the macro body template language.
// Literal text passes through unchanged, {{ expr }} evaluates a Starlark
// expression, {* stmt *} drives control flow and {# ... #} is a comment.
package template

import "go.starlark.net/starlark"

// Position tracks source location for error reporting.
type Position struct {
	File   string
	Line   int
	Column int
}

// Node is the interface for all template AST nodes.
type Node interface {
	Pos() Position
	node() // marker method to restrict implementation
}

// nodeBase provides common Position handling for all nodes.
type nodeBase struct {
	pos Position
}

func (n *nodeBase) Pos() Position { return n.pos }
func (n *nodeBase) node()         {}

// TextNode represents literal command text.
type TextNode struct {
	nodeBase
	Text string
}

// ExprNode represents a {{ expr }} expression.
// The Expr field contains the Starlark expression source (without delimiters).
type ExprNode struct {
	nodeBase
	Expr string
}

// StmtKind identifies the type of control flow statement.
type StmtKind int

// StmtKind constants for control flow statement types.
const (
	StmtUnknown StmtKind = iota // Unknown/invalid statement
	StmtFor                     // {* for x in items: *}
	StmtEndFor                  // {* endfor *}
	StmtIf                      // {* if cond: *}
	StmtElif                    // {* elif cond: *}
	StmtElse                    // {* else: *}
	StmtEndIf                   // {* endif *}
	StmtSet                     // {* set name = expr *}
)

func (k StmtKind) String() string {
	switch k {
	case StmtFor:
		return "for"
	case StmtEndFor:
		return "endfor"
	case StmtIf:
		return "if"
	case StmtElif:
		return "elif"
	case StmtElse:
		return "else"
	case StmtEndIf:
		return "endif"
	case StmtSet:
		return "set"
	default:
		return "unknown"
	}
}

// StmtNode represents a {* stmt *} statement (raw from lexer, before parsing into blocks).
type StmtNode struct {
	nodeBase
	Kind    StmtKind
	Expr    string // Condition (if/elif), iterator (for) or value (set)
	VarName string // Loop variable (for) or bound name (set)
}

// SetNode binds the value of Expr to Name for the rest of the enclosing scope.
type SetNode struct {
	nodeBase
	Name string
	Expr string
}

// ForBlock represents a complete for loop with its body.
type ForBlock struct {
	nodeBase
	VarName  string
	IterExpr string
	Body     []Node
}

// IfBlock represents a complete if/elif/else conditional.
type IfBlock struct {
	nodeBase
	Condition string
	Body      []Node
	ElseIfs   []Branch
	Else      []Node // nil when there is no else branch
}

// Branch represents an elif branch.
type Branch struct {
	Condition string
	Body      []Node
	pos       Position
}

// Template is a parsed template ready for rendering.
type Template struct {
	Nodes []Node
	File  string

	// globals are the engine values bound at compile time.
	globals starlark.StringDict
}
