// Package scan reads macro definitions from configuration files.
//
// A macro is declared in a section named "<keyword> <name>", e.g.
//
//	[gcode_macro greet]
//	description: Say hi
//	gcode:
//	    RESPOND MSG="hi"
//
// INI is the primary syntax; .yaml/.yml and .toml files use the same
// section naming with their own syntax.
package scan

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Defaults for section recognition.
const (
	DefaultKeyword            = "gcode_macro"
	DefaultBodyKey            = "gcode"
	DefaultDescriptionKey     = "description"
	DefaultDescriptionMissing = "No Description"
)

// Definition is one macro found in a source file.
type Definition struct {
	Name        string
	Body        string
	Description string
	// Source is the resolved path of the defining file.
	Source string
	// Section is the raw section name.
	Section string
}

// Config configures a Scanner. Zero values fall back to the defaults.
type Config struct {
	// Sources are file names in scan order; relative names resolve
	// against BaseDir and a leading ~ expands to the home directory.
	Sources []string
	BaseDir string

	Keyword            string
	BodyKey            string
	DescriptionKey     string
	DefaultDescription string

	Logger *slog.Logger
}

// Scanner yields macro definitions from an ordered list of sources.
type Scanner struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a scanner.
func New(cfg Config) *Scanner {
	if cfg.Keyword == "" {
		cfg.Keyword = DefaultKeyword
	}
	if cfg.BodyKey == "" {
		cfg.BodyKey = DefaultBodyKey
	}
	if cfg.DescriptionKey == "" {
		cfg.DescriptionKey = DefaultDescriptionKey
	}
	if cfg.DefaultDescription == "" {
		cfg.DefaultDescription = DefaultDescriptionMissing
	}
	cfg.BodyKey = strings.ToLower(cfg.BodyKey)
	cfg.DescriptionKey = strings.ToLower(cfg.DescriptionKey)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Scanner{cfg: cfg, logger: logger}
}

// Keyword returns the section keyword in use.
func (s *Scanner) Keyword() string {
	return s.cfg.Keyword
}

// Paths returns the resolved source paths in scan order.
func (s *Scanner) Paths() []string {
	paths := make([]string, 0, len(s.cfg.Sources))
	for _, src := range s.cfg.Sources {
		paths = append(paths, s.resolve(src))
	}
	return paths
}

// Scan reads every source. It never fails as a whole: unreadable files and
// malformed sections are skipped and reported as diagnostics.
func (s *Scanner) Scan() ([]Definition, []Diagnostic) {
	var (
		defs  []Definition
		diags []Diagnostic
	)

	for _, path := range s.Paths() {
		d, dd := s.scanFile(path)
		defs = append(defs, d...)
		diags = append(diags, dd...)
	}

	for _, d := range diags {
		s.logger.Warn("macro scan issue",
			slog.String("severity", string(d.Severity)),
			slog.String("code", d.Code),
			slog.String("path", d.Path),
			slog.String("section", d.Section),
			slog.String("message", d.Message))
	}
	s.logger.Debug("scanned macro sources",
		slog.Int("sources", len(s.cfg.Sources)),
		slog.Int("definitions", len(defs)),
		slog.Int("diagnostics", len(diags)))

	return defs, diags
}

func (s *Scanner) scanFile(path string) ([]Definition, []Diagnostic) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator configuration
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, []Diagnostic{{
				Severity: SeverityWarning,
				Code:     CodeSourceMissing,
				Message:  "source file does not exist",
				Path:     path,
				Cause:    err,
			}}
		}
		return nil, []Diagnostic{{
			Severity: SeverityError,
			Code:     CodeSourceUnreadable,
			Message:  fmt.Sprintf("failed to read source: %v", err),
			Path:     path,
			Cause:    err,
		}}
	}

	format := FormatFor(path)
	sections, issues, err := parseSections(format, path, data)
	if err != nil {
		return nil, []Diagnostic{{
			Severity: SeverityError,
			Code:     CodeSourceParseFailed,
			Message:  fmt.Sprintf("failed to parse %s source: %v", format, err),
			Path:     path,
			Cause:    err,
		}}
	}

	var (
		defs  []Definition
		diags []Diagnostic
	)
	for _, issue := range issues {
		if !s.isMacroSection(issue.section) {
			continue
		}
		diags = append(diags, Diagnostic{
			Severity: SeverityError,
			Code:     CodeSectionMalformed,
			Message:  issue.message,
			Path:     path,
			Section:  issue.section,
		})
	}

	for _, sec := range sections {
		def, diag, ok := s.definition(path, sec)
		if diag != nil {
			diags = append(diags, *diag)
		}
		if ok {
			defs = append(defs, def)
		}
	}

	return defs, diags
}

func (s *Scanner) isMacroSection(name string) bool {
	fields := strings.Fields(name)
	return len(fields) > 0 && fields[0] == s.cfg.Keyword
}

// definition turns a section into a Definition. Sections of other types are
// ignored without a diagnostic.
func (s *Scanner) definition(path string, sec section) (Definition, *Diagnostic, bool) {
	fields := strings.Fields(sec.name)
	if len(fields) == 0 || fields[0] != s.cfg.Keyword {
		return Definition{}, nil, false
	}

	if len(fields) < 2 {
		return Definition{}, &Diagnostic{
			Severity: SeverityError,
			Code:     CodeSectionNoName,
			Message:  fmt.Sprintf("section %q has no macro name", sec.name),
			Path:     path,
			Section:  sec.name,
		}, false
	}
	name := fields[1]

	body, ok := sec.keys[s.cfg.BodyKey]
	if !ok {
		return Definition{}, &Diagnostic{
			Severity: SeverityError,
			Code:     CodeSectionNoBody,
			Message:  fmt.Sprintf("macro %q has no %q key", name, s.cfg.BodyKey),
			Path:     path,
			Section:  sec.name,
		}, false
	}

	desc, ok := sec.keys[s.cfg.DescriptionKey]
	if !ok {
		desc = s.cfg.DefaultDescription
	}

	return Definition{
		Name:        name,
		Body:        body,
		Description: desc,
		Source:      path,
		Section:     sec.name,
	}, nil, true
}

func (s *Scanner) resolve(src string) string {
	src = ExpandHome(src)
	if !filepath.IsAbs(src) && s.cfg.BaseDir != "" {
		src = filepath.Join(ExpandHome(s.cfg.BaseDir), src)
	}
	return filepath.Clean(src)
}

// ExpandHome replaces a leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Fingerprint digests path, size and modification time of every source.
// It changes whenever a source is edited, created or removed.
func (s *Scanner) Fingerprint() string {
	h := sha256.New()
	for _, path := range s.Paths() {
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(h, "%s\x00missing\x00", path)
			continue
		}
		fmt.Fprintf(h, "%s\x00%d\x00%d\x00", path, info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}
