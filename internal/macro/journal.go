package macro

import (
	"context"
	"time"

	"github.com/leapstack-labs/dynmacro/internal/scan"
)

// ReconcileRecord summarizes one reconciliation.
type ReconcileRecord struct {
	Fingerprint string
	Macros      int
	Registered  int
	Diagnostics []scan.Diagnostic
	// Skipped is set when the reload policy found nothing to rebuild.
	Skipped  bool
	Duration time.Duration
}

// Invocation describes one macro run.
type Invocation struct {
	Macro       string
	Command     string
	RawParams   string
	Depth       int
	Placeholder bool
}

// Journal records reconciliations and invocations. Journal failures are
// logged and never fail a command.
type Journal interface {
	RecordReconcile(ctx context.Context, rec ReconcileRecord) error
	BeginInvocation(ctx context.Context, inv Invocation) (string, error)
	CompleteInvocation(ctx context.Context, id string, runErr error) error
}

type nopJournal struct{}

func (nopJournal) RecordReconcile(context.Context, ReconcileRecord) error { return nil }

func (nopJournal) BeginInvocation(context.Context, Invocation) (string, error) { return "", nil }

func (nopJournal) CompleteInvocation(context.Context, string, error) error { return nil }
