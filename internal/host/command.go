package host

import (
	"fmt"
	"maps"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Command is one parsed command line.
type Command struct {
	// Name is the uppercased command word.
	Name string
	// Params holds KEY=VALUE parameters with uppercased keys.
	Params map[string]string
	// Raw is the unparsed text after the command word.
	Raw string

	responder responder
}

type responder interface {
	Respond(kind ResponseKind, text string)
}

// Get returns a parameter or def when absent.
func (c *Command) Get(key, def string) string {
	if v, ok := c.Params[upper(key)]; ok {
		return v
	}
	return def
}

// Parameters returns a copy of the parsed parameters.
func (c *Command) Parameters() map[string]string {
	return maps.Clone(c.Params)
}

// RawParameters returns the text after the command word.
func (c *Command) RawParameters() string {
	return c.Raw
}

// RespondInfo sends an informational line to the client.
func (c *Command) RespondInfo(msg string) {
	if c.responder != nil {
		c.responder.Respond(KindInfo, msg)
	}
}

// RespondRaw sends a line to the client without decoration.
func (c *Command) RespondRaw(msg string) {
	if c.responder != nil {
		c.responder.Respond(KindRaw, msg)
	}
}

func upper(s string) string {
	return cases.Upper(language.Und).String(s)
}

// ParseLine parses a command line. Blank lines and pure comments yield
// (nil, nil). The grammar is
//
//	COMMAND [KEY=VALUE ...]   ; comment
//
// Values may be double or single quoted. Classic codes such as G1 also
// accept letter-prefixed words (G1 X10 → X=10).
func ParseLine(line string) (*Command, error) {
	line = strings.TrimSpace(stripComment(line))
	if line == "" {
		return nil, nil
	}

	word, raw := line, ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		word, raw = line[:i], line[i+1:]
	}
	cmd := &Command{
		Name:   upper(word),
		Params: make(map[string]string),
		Raw:    strings.TrimSpace(raw),
	}

	words, err := splitWords(cmd.Raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Name, err)
	}

	classic := isClassic(cmd.Name)
	for _, w := range words {
		key, value, ok := strings.Cut(w, "=")
		switch {
		case ok && key != "":
			cmd.Params[upper(key)] = value
		case classic && w != "":
			cmd.Params[upper(w[:1])] = w[1:]
		default:
			// Free text such as the M117 message stays in Raw only.
		}
	}

	return cmd, nil
}

// isClassic reports whether name looks like G1, M117 or T0.
func isClassic(name string) bool {
	if len(name) < 2 || name[0] < 'A' || name[0] > 'Z' {
		return false
	}
	for _, r := range name[1:] {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}

// stripComment removes a ; comment that is not inside quotes.
func stripComment(line string) string {
	var quote, prev rune
	for i, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case (r == '"' || r == '\'') && opensQuote(prev):
			quote = r
		case r == ';':
			return line[:i]
		}
		prev = r
	}
	return line
}

func opensQuote(prev rune) bool {
	return prev == 0 || prev == ' ' || prev == '\t' || prev == '='
}

// splitWords splits on whitespace, keeping quoted runs together and
// dropping the quotes. A quote only opens at the start of a word or right
// after '=', so apostrophes in free text stay literal.
func splitWords(s string) ([]string, error) {
	var (
		words   []string
		current strings.Builder
		quote   rune
		prev    rune
		inWord  bool
	)

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case (r == '"' || r == '\'') && (!inWord || prev == '='):
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				words = append(words, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
		prev = r
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if inWord {
		words = append(words, current.String())
	}
	return words, nil
}
