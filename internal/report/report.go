package report

import (
	"time"
)

type Status string

const (
	StatusCreated Status = "created"
	StatusFailed  Status = "failed"
)

// Outcome is the result of migrating one source record.
type Outcome struct {
	ObjectType string `json:"object_type" yaml:"object_type"`
	SourceID   string `json:"source_id" yaml:"source_id"`
	TargetID   string `json:"target_id,omitempty" yaml:"target_id,omitempty"`
	Status     Status `json:"status" yaml:"status"`
	StatusCode int    `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	Body       string `json:"body,omitempty" yaml:"body,omitempty"`
}

type Report struct {
	RunID             string            `json:"run_id" yaml:"run_id"`
	StartedAt         time.Time         `json:"started_at" yaml:"started_at"`
	FinishedAt        time.Time         `json:"finished_at" yaml:"finished_at"`
	SourceInstanceURL string            `json:"source_instance_url" yaml:"source_instance_url"`
	TargetInstanceURL string            `json:"target_instance_url" yaml:"target_instance_url"`
	IDMap             map[string]string `json:"id_map" yaml:"id_map"`
	Parents           []Outcome         `json:"parents" yaml:"parents"`
	Attachments       []Outcome         `json:"attachments" yaml:"attachments"`
}

type Counts struct {
	Created int `json:"created" yaml:"created"`
	Failed  int `json:"failed" yaml:"failed"`
}

type Summary struct {
	Parents     Counts `json:"parents" yaml:"parents"`
	Attachments Counts `json:"attachments" yaml:"attachments"`
}

func count(outcomes []Outcome) Counts {
	var c Counts
	for _, o := range outcomes {
		if o.Status == StatusCreated {
			c.Created++
		} else {
			c.Failed++
		}
	}
	return c
}

func (r *Report) Summary() Summary {
	return Summary{Parents: count(r.Parents), Attachments: count(r.Attachments)}
}

// Failures returns the failed outcomes of both phases, parents first.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, list := range [][]Outcome{r.Parents, r.Attachments} {
		for _, o := range list {
			if o.Status != StatusCreated {
				out = append(out, o)
			}
		}
	}
	return out
}

// FirstCreatedParent returns the first parent created in the target org, if any.
func (r *Report) FirstCreatedParent() (Outcome, bool) {
	for _, o := range r.Parents {
		if o.Status == StatusCreated {
			return o, true
		}
	}
	return Outcome{}, false
}
