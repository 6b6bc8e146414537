package servicetags

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// FetchRequest describes a single HTTP GET.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse captures the result of a FetchRequest.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Record is one entry of the dataset's values array.
type Record struct {
	ID              string
	Name            string
	SystemService   string
	AddressPrefixes []string
}

// Dataset is the downloaded service tags document.
type Dataset struct {
	ChangeNumber    int64
	HasChangeNumber bool
	// Version is the publication date string, e.g. "2024-05-13".
	Version string
	Records []Record
}

// VersionLabel is the value rendered for {{VERSION}}: the change number as text.
func (d Dataset) VersionLabel() string {
	if !d.HasChangeNumber {
		return "Unknown Version"
	}
	return strconv.FormatInt(d.ChangeNumber, 10)
}

// ChangeNumberLabel is the value rendered for {{CHANGE_NUMBER}}.
func (d Dataset) ChangeNumberLabel() string {
	if !d.HasChangeNumber {
		return "Unknown ChangeNumber"
	}
	return strconv.FormatInt(d.ChangeNumber, 10)
}

// VersionDate returns the publication date or a placeholder when absent.
func (d Dataset) VersionDate() string {
	if d.Version == "" {
		return "Unknown Date"
	}
	return d.Version
}

// ServiceGroup is every address prefix of the records sharing one system service.
type ServiceGroup struct {
	Service  string
	Prefixes []string
}

// Filename is the published text file name for the group.
func (g ServiceGroup) Filename() string {
	return g.Service + ".txt"
}

// Content is the newline-joined prefix list, without a trailing newline.
func (g ServiceGroup) Content() []byte {
	return []byte(strings.Join(g.Prefixes, "\n"))
}

// Stage is a step of the run state machine.
type Stage string

// Run stages in execution order. Any stage may move to StageFailed.
const (
	StageInit             Stage = "INIT"
	StageDirectoriesReady Stage = "DIRECTORIES_READY"
	StageLocated          Stage = "LOCATED"
	StageFetched          Stage = "FETCHED"
	StagePartitioned      Stage = "PARTITIONED"
	StagePageRendered     Stage = "PAGE_RENDERED"
	StagePublished        Stage = "PUBLISHED"
	StageDone             Stage = "DONE"
	StageFailed           Stage = "FAILED"
)

// RunSummary describes one pipeline invocation.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	JSONURL      string    `json:"json_url,omitempty"`
	Filename     string    `json:"filename,omitempty"`
	SHA256       string    `json:"sha256,omitempty"`
	Bytes        int64     `json:"bytes"`
	ChangeNumber string    `json:"change_number,omitempty"`
	VersionDate  string    `json:"version_date,omitempty"`
	Services     int       `json:"services"`
	Stage        Stage     `json:"stage"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Error        string    `json:"error,omitempty"`
}
