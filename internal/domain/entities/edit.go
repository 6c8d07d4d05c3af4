package entities

import "time"

// EditState tracks where an edit is in its lifecycle
type EditState string

// Edit lifecycle states
const (
	EditUninitialized     EditState = "uninitialized"
	EditOpen              EditState = "open"
	EditArtifactsAttached EditState = "artifacts_attached"
	EditCommitted         EditState = "committed"
)

// EditTransaction is a pending, uncommitted change-set on a remote application listing
type EditTransaction struct {
	EditID      string
	PackageName string
	VersionCode int64
	ExpiresAt   time.Time
	State       EditState
}

// IsTerminal reports whether the edit can no longer be used
func (t *EditTransaction) IsTerminal() bool {
	return t.State == EditCommitted
}

// AttachResult describes the outcome of a mapping attachment
type AttachResult struct {
	Skipped    bool                  `json:"skipped"`
	Path       string                `json:"path"`
	SymbolType DeobfuscationFileType `json:"symbol_type"`
	SHA256     string                `json:"sha256,omitempty"`
	Size       int64                 `json:"size,omitempty"`
	Signed     bool                  `json:"signed,omitempty"`
}

// CommitResult describes a finalized edit
type CommitResult struct {
	EditID      string    `json:"edit_id"`
	PackageName string    `json:"package_name"`
	CommittedAt time.Time `json:"committed_at"`
}
