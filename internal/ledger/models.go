package ledger

import (
	"sort"
	"strings"
	"time"
)

// Status represents where a record sits in the pipeline.
type Status string

const (
	StatusSeen              Status = "seen"
	StatusValidated         Status = "validated"
	StatusRejected          Status = "rejected"
	StatusEnriched          Status = "enriched"
	StatusContentGenerated  Status = "content_generated"
	StatusDocumentRendered  Status = "document_rendered"
	StatusDispatchAttempted Status = "dispatch_attempted"
	StatusDispatched        Status = "dispatched"
	StatusFailed            Status = "failed"
	StatusDead              Status = "dead"
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageValidate Stage = "validate"
	StageEnrich   Stage = "enrich"
	StageGenerate Stage = "generate"
	StageRender   Stage = "render"
	StageDispatch Stage = "dispatch"
)

var allStatuses = []Status{
	StatusSeen,
	StatusValidated,
	StatusRejected,
	StatusEnriched,
	StatusContentGenerated,
	StatusDocumentRendered,
	StatusDispatchAttempted,
	StatusDispatched,
	StatusFailed,
	StatusDead,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var allStages = []Stage{StageValidate, StageEnrich, StageGenerate, StageRender, StageDispatch}

// stageInput maps the status a stage consumes to that stage.
var stageInput = map[Status]Stage{
	StatusSeen:             StageValidate,
	StatusValidated:        StageEnrich,
	StatusEnriched:         StageGenerate,
	StatusContentGenerated: StageRender,
	StatusDocumentRendered: StageDispatch,
}

// stageOutput maps a stage to the status it commits on success.
var stageOutput = map[Stage]Status{
	StageValidate: StatusValidated,
	StageEnrich:   StatusEnriched,
	StageGenerate: StatusContentGenerated,
	StageRender:   StatusDocumentRendered,
	StageDispatch: StatusDispatched,
}

// AllStatuses returns every known status in pipeline order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// AllStages returns the stages in execution order.
func AllStages() []Stage {
	out := make([]Stage, len(allStages))
	copy(out, allStages)
	return out
}

// ParseStatus normalizes user input into a known status.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[status]
	return status, ok
}

// ParseStage normalizes user input into a known stage.
func ParseStage(value string) (Stage, bool) {
	stage := Stage(strings.ToLower(strings.TrimSpace(value)))
	_, ok := stageOutput[stage]
	return stage, ok
}

// IsTerminal reports whether no further stage runs from status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusDead, StatusDispatched:
		return true
	}
	return false
}

// EligibleStatuses lists the statuses the orchestrator picks work from.
// dispatch_attempted is excluded: those records wait for reconciliation.
func EligibleStatuses() []Status {
	return []Status{
		StatusSeen,
		StatusValidated,
		StatusEnriched,
		StatusContentGenerated,
		StatusDocumentRendered,
		StatusFailed,
	}
}

// AdvancedStatus returns the status committed when stage succeeds.
func AdvancedStatus(stage Stage) (Status, bool) {
	status, ok := stageOutput[stage]
	return status, ok
}

// Payload is the flat map of stage outputs accumulated on a record.
type Payload map[string]string

// Clone returns a copy safe for mutation.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns payload keys in sorted order.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Record is the durable state of one item.
type Record struct {
	ID          string
	Status      Status
	FailedStage Stage
	Reason      string
	Attempts    map[Stage]int
	Payload     Payload
	Revision    int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NextStage returns the stage to run for the record, or false when the
// record is terminal or waiting on reconciliation.
func (r *Record) NextStage() (Stage, bool) {
	if r == nil {
		return "", false
	}
	if r.Status == StatusFailed {
		if r.FailedStage == "" {
			return "", false
		}
		return r.FailedStage, true
	}
	stage, ok := stageInput[r.Status]
	return stage, ok
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Payload = r.Payload.Clone()
	out.Attempts = make(map[Stage]int, len(r.Attempts))
	for k, v := range r.Attempts {
		out.Attempts[k] = v
	}
	return &out
}

// Field returns a payload value, or "" when absent.
func (r *Record) Field(key string) string {
	if r == nil || r.Payload == nil {
		return ""
	}
	return r.Payload[key]
}

// AttemptCount returns the retry count recorded for stage.
func (r *Record) AttemptCount(stage Stage) int {
	if r == nil || r.Attempts == nil {
		return 0
	}
	return r.Attempts[stage]
}

// Transition describes one compare-and-swap commit.
type Transition struct {
	ID       string
	Expected Status
	Revision int64
	Next     Status
	// Stage is the stage being committed. It is stored as failed_stage for
	// failed, dead, and rejected records and is the attempts key.
	Stage        Stage
	Reason       string
	Delta        Payload
	CountAttempt bool
}

// HealthSummary describes aggregated ledger counts per lifecycle group.
type HealthSummary struct {
	Total      int
	Active     int
	Failed     int
	Ambiguous  int
	Dispatched int
	Rejected   int
	Dead       int
}

// DatabaseHealth captures diagnostic information about the ledger database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	JournalMode      string
	TotalRecords     int
	Error            string
}
