package template

import (
	"slices"
	"strings"
)

// ParseString tokenizes and parses a template.
func ParseString(input, file string) (*Template, error) {
	tokens, err := NewLexer(input, file).Tokenize()
	if err != nil {
		return nil, err
	}
	return Parse(tokens, file)
}

// Parse builds a Template from a token stream, pairing control flow
// statements into ForBlock and IfBlock nodes.
func Parse(tokens []Token, file string) (*Template, error) {
	p := &parser{tokens: tokens}

	nodes, term, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if term != nil {
		return nil, NewUnmatchedBlockError(term.Pos(), term.Kind)
	}

	return &Template{Nodes: nodes, File: file}, nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) next() (Token, bool) {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}, false
	}
	tok := p.tokens[p.pos]
	p.pos++
	return tok, tok.Type != TokenEOF
}

// parseBlock collects nodes until EOF or a statement whose kind is one of
// terminators. The terminating statement is returned; nil means EOF.
func (p *parser) parseBlock(terminators ...StmtKind) ([]Node, *StmtNode, error) {
	var nodes []Node

	for {
		tok, ok := p.next()
		if !ok {
			return nodes, nil, nil
		}

		switch tok.Type {
		case TokenText:
			nodes = append(nodes, &TextNode{nodeBase: nodeBase{pos: tok.Pos}, Text: tok.Value})
		case TokenExpr:
			nodes = append(nodes, &ExprNode{nodeBase: nodeBase{pos: tok.Pos}, Expr: tok.Value})
		case TokenComment:
			continue
		case TokenStmt:
			stmt, err := parseStatement(tok)
			if err != nil {
				return nil, nil, err
			}
			if slices.Contains(terminators, stmt.Kind) {
				return nodes, stmt, nil
			}

			switch stmt.Kind {
			case StmtFor:
				block, err := p.parseFor(stmt)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, block)
			case StmtIf:
				block, err := p.parseIf(stmt)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, block)
			case StmtSet:
				nodes = append(nodes, &SetNode{nodeBase: stmt.nodeBase, Name: stmt.VarName, Expr: stmt.Expr})
			default:
				return nil, nil, NewUnmatchedBlockError(stmt.Pos(), stmt.Kind)
			}
		}
	}
}

func (p *parser) parseFor(stmt *StmtNode) (*ForBlock, error) {
	body, term, err := p.parseBlock(StmtEndFor)
	if err != nil {
		return nil, err
	}
	if term == nil {
		return nil, NewUnmatchedBlockError(stmt.Pos(), StmtFor)
	}
	return &ForBlock{
		nodeBase: stmt.nodeBase,
		VarName:  stmt.VarName,
		IterExpr: stmt.Expr,
		Body:     body,
	}, nil
}

func (p *parser) parseIf(stmt *StmtNode) (*IfBlock, error) {
	block := &IfBlock{nodeBase: stmt.nodeBase, Condition: stmt.Expr}

	body, term, err := p.parseBlock(StmtElif, StmtElse, StmtEndIf)
	if err != nil {
		return nil, err
	}
	block.Body = body

	for {
		if term == nil {
			return nil, NewUnmatchedBlockError(stmt.Pos(), StmtIf)
		}

		switch term.Kind {
		case StmtEndIf:
			return block, nil

		case StmtElif:
			branch := Branch{Condition: term.Expr, pos: term.Pos()}
			branch.Body, term, err = p.parseBlock(StmtElif, StmtElse, StmtEndIf)
			if err != nil {
				return nil, err
			}
			block.ElseIfs = append(block.ElseIfs, branch)

		case StmtElse:
			var elseBody []Node
			elseBody, term, err = p.parseBlock(StmtEndIf)
			if err != nil {
				return nil, err
			}
			if elseBody == nil {
				elseBody = []Node{}
			}
			block.Else = elseBody
			if term == nil {
				return nil, NewUnmatchedBlockError(stmt.Pos(), StmtIf)
			}
			return block, nil
		}
	}
}

// parseStatement classifies the content of a {* ... *} token.
func parseStatement(tok Token) (*StmtNode, error) {
	src := strings.TrimSpace(tok.Value)
	stmt := &StmtNode{nodeBase: nodeBase{pos: tok.Pos}}

	keyword, rest, _ := strings.Cut(src, " ")
	keyword = strings.TrimSuffix(keyword, ":")
	rest = strings.TrimSpace(rest)

	switch keyword {
	case "endfor":
		stmt.Kind = StmtEndFor
	case "endif":
		stmt.Kind = StmtEndIf
	case "else":
		stmt.Kind = StmtElse
	case "if", "elif":
		cond := trimColon(rest)
		if cond == "" {
			return nil, NewParseErrorf(tok.Pos, "%s statement requires a condition", keyword)
		}
		stmt.Kind = StmtIf
		if keyword == "elif" {
			stmt.Kind = StmtElif
		}
		stmt.Expr = cond
	case "for":
		name, iter, ok := strings.Cut(rest, " in ")
		name = strings.TrimSpace(name)
		iter = trimColon(iter)
		if !ok || !IsIdentifier(name) || iter == "" {
			return nil, NewParseErrorf(tok.Pos, "invalid for statement %q (expected 'for name in expr')", src)
		}
		stmt.Kind = StmtFor
		stmt.VarName = name
		stmt.Expr = iter
	case "set":
		name, value, ok := strings.Cut(rest, "=")
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !ok || !IsIdentifier(name) || value == "" {
			return nil, NewParseErrorf(tok.Pos, "invalid set statement %q (expected 'set name = expr')", src)
		}
		stmt.Kind = StmtSet
		stmt.VarName = name
		stmt.Expr = value
	default:
		return nil, NewParseErrorf(tok.Pos, "unknown statement %q", keyword)
	}

	return stmt, nil
}

func trimColon(s string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ":"))
}

// IsIdentifier reports whether name is a valid binding name.
func IsIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		letter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		digit := r >= '0' && r <= '9'
		if !letter && (i == 0 || !digit) {
			return false
		}
	}
	return true
}
