// Package entities defines core domain models and data structures.
package entities

// DeobfuscationFileType is the symbol type the publishing service expects for a mapping upload
type DeobfuscationFileType string

// Deobfuscation file types accepted by the publishing API
const (
	DeobfuscationProguard   DeobfuscationFileType = "proguard"
	DeobfuscationNativeCode DeobfuscationFileType = "nativeCode"
)

// MappingArtifact is a local deobfuscation mapping for one version of the application
type MappingArtifact struct {
	Path string
	Type DeobfuscationFileType
}

// SymbolArtifact is a native library found in the build output.
// It is reported only; the publishing API has no ingestion endpoint for it.
type SymbolArtifact struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}
