package output

import "time"

// MacroInfo describes one macro for JSON output.
type MacroInfo struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Registered  bool   `json:"registered"`
	Shadowed    bool   `json:"shadowed"`
	Error       string `json:"error,omitempty"`
}

// DiagnosticInfo describes one scan diagnostic for JSON output.
type DiagnosticInfo struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Path     string `json:"path"`
	Section  string `json:"section,omitempty"`
}

// ListOutput is the JSON document printed by the list command.
type ListOutput struct {
	DispatchCommand string           `json:"dispatch_command"`
	Macros          []MacroInfo      `json:"macros"`
	Diagnostics     []DiagnosticInfo `json:"diagnostics"`
}

// CheckOutput is the JSON document printed by the check command.
type CheckOutput struct {
	Keyword     string           `json:"keyword"`
	Sources     []string         `json:"sources"`
	Macros      []string         `json:"macros"`
	Diagnostics []DiagnosticInfo `json:"diagnostics"`
}

// InvocationInfo describes one journaled macro run for JSON output.
type InvocationInfo struct {
	ID          string     `json:"id"`
	Macro       string     `json:"macro"`
	Command     string     `json:"command"`
	RawParams   string     `json:"raw_params,omitempty"`
	Depth       int        `json:"depth"`
	Placeholder bool       `json:"placeholder"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMS  int64      `json:"duration_ms"`
}
