package entities

// WorkflowReport summarizes one publishing run
type WorkflowReport struct {
	RunID       string           `json:"run_id"`
	PackageName string           `json:"package_name"`
	VersionCode int64            `json:"version_code"`
	Track       string           `json:"track"`
	EditID      string           `json:"edit_id,omitempty"`
	DryRun      bool             `json:"dry_run"`
	Symbols     []SymbolArtifact `json:"symbols"`
	Mapping     *AttachResult    `json:"mapping,omitempty"`
	Commit      *CommitResult    `json:"commit,omitempty"`
}
