package scan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Format identifies a source file syntax.
type Format string

// Supported source formats.
const (
	FormatINI  Format = "ini"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the format from the file extension. Anything that is not
// YAML or TOML is read as INI.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatINI
	}
}

// section is one named group of keys in natural file order. Keys are
// lowercased.
type section struct {
	name string
	keys map[string]string
}

// sectionIssue is a per-section problem found while decoding.
type sectionIssue struct {
	section string
	message string
}

func parseSections(format Format, path string, data []byte) ([]section, []sectionIssue, error) {
	switch format {
	case FormatYAML:
		return parseYAML(data)
	case FormatTOML:
		return parseTOML(data)
	default:
		s, err := parseINI(path, data)
		return s, nil, err
	}
}

func parseINI(path string, data []byte) ([]section, error) {
	normalized := normalizeINI(data)
	cfg, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
		IgnoreInlineComment:        true,
		IgnoreContinuation:         true,
		PreserveSurroundedQuote:    true,
		InsensitiveKeys:            true,
		SkipUnrecognizableLines:    true,
		KeyValueDelimiters:         "=:",
		ReaderBufferSize:           len(normalized),
	}, normalized)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var out []section
	for _, sec := range cfg.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		keys := make(map[string]string, len(sec.Keys()))
		for _, key := range sec.Keys() {
			keys[key.Name()] = joinINIValue(key.Value())
		}
		out = append(out, section{name: sec.Name(), keys: keys})
	}
	return out, nil
}

// normalizeINI rewrites configparser-style input so that ini.v1 reads every
// value as one Python multiline block. A value continues on every line
// indented deeper than its key; blank lines inside it are kept and full-line
// # or ; comments are dropped anywhere. Each key is emitted as "name =" with
// the inline value and the continuation lines below it, all indented, so no
// quote or backslash handling applies to the value text.
func normalizeINI(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	var (
		out       strings.Builder
		key       string
		keyIndent int
		value     []string
	)
	flush := func() {
		if key == "" {
			return
		}
		out.WriteString(key + " =\n")
		for _, v := range value {
			out.WriteString(" " + v + "\n")
		}
		key, value = "", nil
	}

	for _, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(raw)
		if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ";") {
			continue
		}
		if trimmed == "" {
			if key != "" {
				value = append(value, "")
			}
			continue
		}

		indent := len(raw) - len(strings.TrimLeft(raw, " \t"))
		if key != "" && indent > keyIndent {
			value = append(value, trimmed)
			continue
		}

		flush()
		if strings.HasPrefix(trimmed, "[") {
			out.WriteString(trimmed + "\n")
			continue
		}
		i := strings.IndexAny(trimmed, "=:")
		if i < 0 {
			out.WriteString(trimmed + "\n")
			continue
		}
		key = strings.TrimSpace(trimmed[:i])
		keyIndent = indent
		value = []string{strings.TrimSpace(trimmed[i+1:])}
	}
	flush()

	return []byte(out.String())
}

// joinINIValue turns a block written by normalizeINI back into the value:
// the inline part, then one line per continuation line, with trailing blank
// lines removed. A body that starts on the line after its key therefore
// begins with a newline.
func joinINIValue(v string) string {
	lines := strings.Split(v, "\n")
	if len(lines) > 1 && lines[0] == "" {
		lines = lines[1:]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimRightFunc(strings.Join(lines, "\n"), unicode.IsSpace)
}

// parseYAML reads top-level mapping keys as section names. A yaml.Node walk
// keeps the file order.
func parseYAML(data []byte) ([]section, []sectionIssue, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("top level must be a mapping of sections, got %s", yamlKind(root))
	}

	var (
		out    []section
		issues []sectionIssue
	)
	for i := 0; i+1 < len(root.Content); i += 2 {
		name, body := root.Content[i].Value, root.Content[i+1]
		if body.Kind != yaml.MappingNode {
			issues = append(issues, sectionIssue{section: name, message: fmt.Sprintf("section must be a mapping, got %s", yamlKind(body))})
			continue
		}

		keys := make(map[string]string, len(body.Content)/2)
		for j := 0; j+1 < len(body.Content); j += 2 {
			k, v := body.Content[j], body.Content[j+1]
			if v.Kind != yaml.ScalarNode {
				issues = append(issues, sectionIssue{section: name, message: fmt.Sprintf("key %q must be a scalar, got %s", k.Value, yamlKind(v))})
				continue
			}
			keys[strings.ToLower(k.Value)] = v.Value
		}
		out = append(out, section{name: name, keys: keys})
	}
	return out, issues, nil
}

func yamlKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}

// parseTOML reads top-level tables as sections, in definition order.
func parseTOML(data []byte) ([]section, []sectionIssue, error) {
	var raw map[string]any
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, nil, err
	}

	var (
		out    []section
		issues []sectionIssue
	)
	for _, key := range md.Keys() {
		if len(key) != 1 {
			continue
		}
		name := key[0]
		table, ok := raw[name].(map[string]any)
		if !ok {
			issues = append(issues, sectionIssue{section: name, message: "top-level value must be a table"})
			continue
		}

		keys := make(map[string]string, len(table))
		for k, v := range table {
			s, ok := v.(string)
			if !ok {
				s = fmt.Sprint(v)
			}
			keys[strings.ToLower(k)] = s
		}
		out = append(out, section{name: name, keys: keys})
	}
	return out, issues, nil
}
