package domain

import (
	"fmt"
	"time"
)

// StreamDone is the terminal line of every runner stream.
const StreamDone = "done"

// StreamErrorPrefix starts every error line of a runner stream.
const StreamErrorPrefix = "error: "

// Principal is an authenticated caller.
type Principal struct {
	Username string
}

// Authenticated reports whether p identifies a caller.
func (p Principal) Authenticated() bool {
	return p.Username != ""
}

// Verb is a runner operation.
type Verb string

const (
	VerbCollect Verb = "collect"
	VerbClean   Verb = "clean"
	VerbScore   Verb = "score"
	VerbRebuild Verb = "rebuild"
)

// ParseVerb validates a verb name.
func ParseVerb(s string) (Verb, error) {
	switch Verb(s) {
	case VerbCollect, VerbClean, VerbScore, VerbRebuild:
		return Verb(s), nil
	}
	return "", fmt.Errorf("%w: operation %q", ErrInvalidInput, s)
}

// Operation is one runner request. Code is a dataset code for collect
// and clean, an indicator code for score and rebuild.
type Operation struct {
	Verb    Verb
	Code    string
	Context CollectContext
}

// ScoreReport summarises one indicator scoring run.
type ScoreReport struct {
	IndicatorCode string         `json:"IndicatorCode"`
	Complete      int            `json:"Complete"`
	Incomplete    int            `json:"Incomplete"`
	Duplicates    int            `json:"Duplicates"`
	Intermediates map[string]int `json:"Intermediates,omitempty"`
}

// DeleteReport counts what a cascading delete removed.
type DeleteReport struct {
	Collection Collection             `json:"Collection"`
	Code       string                 `json:"Code"`
	Deleted    map[ClassifierKind]int `json:"Deleted,omitempty"`
	Raw        int                    `json:"Raw,omitempty"`
	Incomplete int                    `json:"Incomplete,omitempty"`
}

// JobState is the lifecycle state of an asynchronous job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// JobStatus tracks an asynchronous rebuild.
type JobStatus struct {
	ID            string    `json:"ID"`
	IndicatorCode string    `json:"IndicatorCode"`
	RequestedBy   string    `json:"RequestedBy"`
	State         JobState  `json:"State"`
	Lines         []string  `json:"Lines,omitempty"`
	Error         string    `json:"Error,omitempty"`
	UpdatedAt     time.Time `json:"UpdatedAt"`
}
