package persistence

// Key is a logical storage key managed by the Bridge.
type Key string

// Managed keys. This block is the only place storage key names are defined;
// SessionReset clears exactly ManagedKeys.
const (
	// KeySessionID tracks the last seen external session identifier.
	KeySessionID Key = "session_id"

	KeySelectedRoleID     Key = "selected_role_id"    // string
	KeySelectedRoleName   Key = "selected_role_name"  // string
	KeyRequirementsSource Key = "requirements_source" // "uploaded_document" | "defined"
	KeyGeneratedReqs      Key = "generated_requirements"

	KeyCombinedResumeText Key = "combined_resume_text" // string
	KeyUploadedFiles      Key = "uploaded_files"       // []upload.FileMeta
	KeyExtractionResults  Key = "extraction_results"   // []upload.Extraction
	KeySelectedFileIndex  Key = "selected_file_index"  // int

	KeyProcessingComplete    Key = "processing_complete"     // bool
	KeyProcessingCompletedAt Key = "processing_completed_at" // RFC 3339 timestamp
	KeyAnalysisActive        Key = "analysis_step_active"    // bool
)

// Requirements source values stored under KeyRequirementsSource.
const (
	SourceUploadedDocument = "uploaded_document"
	SourceDefined          = "defined"
)

// ManagedKeys is the authoritative whitelist of keys the Bridge reads and writes.
var ManagedKeys = []Key{
	KeySessionID,
	KeySelectedRoleID,
	KeySelectedRoleName,
	KeyRequirementsSource,
	KeyGeneratedReqs,
	KeyCombinedResumeText,
	KeyUploadedFiles,
	KeyExtractionResults,
	KeySelectedFileIndex,
	KeyProcessingComplete,
	KeyProcessingCompletedAt,
	KeyAnalysisActive,
}

// IsManaged reports whether k is on the whitelist.
func IsManaged(k Key) bool {
	for _, m := range ManagedKeys {
		if m == k {
			return true
		}
	}
	return false
}
