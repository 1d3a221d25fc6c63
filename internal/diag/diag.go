// Package diag aggregates validation and reconstruction outcomes into the
// severity-tagged diagnostic list the engine returns. The full list is
// always returned, including for rejected documents, so authors can locate
// and fix every offending rule in one pass.
package diag

import (
	stderrors "errors"

	"github.com/tanakhcc/critic-engine/core/errors"
)

// Severity of a diagnostic.
type Severity string

// Severity constants.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is one validation or reconstruction finding.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Rule     string   `json:"rule"`
	Location string   `json:"location,omitempty"`
	Message  string   `json:"message"`
}

// Reporter collects diagnostics for one document. It is not safe for
// concurrent use; each document gets its own reporter.
type Reporter struct {
	diags []Diagnostic
	fatal bool
}

// New creates an empty reporter.
func New() *Reporter {
	return &Reporter{}
}

// Error records a fatal finding. The document will be rejected.
func (r *Reporter) Error(rule, location, message string) {
	r.fatal = true
	r.diags = append(r.diags, Diagnostic{
		Severity: SeverityError,
		Rule:     rule,
		Location: location,
		Message:  message,
	})
}

// Warn records an advisory finding.
func (r *Reporter) Warn(rule, location, message string) {
	r.diags = append(r.diags, Diagnostic{
		Severity: SeverityWarning,
		Rule:     rule,
		Location: location,
		Message:  message,
	})
}

// Info records an informational finding.
func (r *Reporter) Info(rule, location, message string) {
	r.diags = append(r.diags, Diagnostic{
		Severity: SeverityInfo,
		Rule:     rule,
		Location: location,
		Message:  message,
	})
}

// Report maps a taxonomy error from core/errors onto the diagnostic list:
// structural and reference errors become fatal errors, advisory errors
// become warnings, ambiguity errors become info. Unknown error types are
// treated as fatal so nothing silently disappears. Nil is ignored.
func (r *Reporter) Report(err error) {
	if err == nil {
		return
	}
	var se *errors.StructuralError
	if stderrors.As(err, &se) {
		r.Error(se.Rule, se.Location, se.Message)
		return
	}
	var re *errors.ReferenceError
	if stderrors.As(err, &re) {
		loc := ""
		if len(re.Locations) > 0 {
			loc = re.Locations[0]
		}
		for i, l := range re.Locations {
			if i == 0 {
				continue
			}
			loc += ", " + l
		}
		r.Error(re.Rule, loc, re.Message+" (id "+re.ID+")")
		return
	}
	var ae *errors.AdvisoryError
	if stderrors.As(err, &ae) {
		r.Warn(ae.Rule, ae.Location, ae.Message)
		return
	}
	var me *errors.AmbiguityError
	if stderrors.As(err, &me) {
		r.Info(me.Rule, me.Location, me.Message)
		return
	}
	r.Error("internal", "", err.Error())
}

// Fatal reports whether any fatal finding was recorded.
func (r *Reporter) Fatal() bool {
	return r.fatal
}

// Diagnostics returns the collected findings in recording order.
func (r *Reporter) Diagnostics() []Diagnostic {
	return r.diags
}

// Merge appends another reporter's findings, carrying its fatality.
func (r *Reporter) Merge(other *Reporter) {
	r.diags = append(r.diags, other.diags...)
	r.fatal = r.fatal || other.fatal
}
