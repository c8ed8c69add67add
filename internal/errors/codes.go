// Package errors provides structured error handling for docrag.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (documents, index snapshots)
//   - 3XX: External service errors (embedding, generation)
//   - 4XX: Validation and precondition errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates document and index storage errors.
	CategoryStorage Category = "STORAGE"
	// CategoryService indicates failures of an external embedding or generation service.
	CategoryService Category = "SERVICE"
	// CategoryValidation indicates input validation and precondition errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid  = "ERR_101_CONFIG_INVALID"
	ErrCodeConfigNotFound = "ERR_102_CONFIG_NOT_FOUND"

	// Storage errors (200-299)
	ErrCodePersistence   = "ERR_201_PERSISTENCE"
	ErrCodeIndexNotFound = "ERR_202_INDEX_NOT_FOUND"
	ErrCodeIndexCorrupt  = "ERR_203_INDEX_CORRUPT"
	ErrCodeDocumentLoad  = "ERR_204_DOCUMENT_LOAD"

	// Service errors (300-399)
	ErrCodeEmbeddingService  = "ERR_301_EMBEDDING_SERVICE"
	ErrCodeGenerationService = "ERR_302_GENERATION_SERVICE"
	ErrCodeQueryEmbedding    = "ERR_303_QUERY_EMBEDDING"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeEmptyInput        = "ERR_402_EMPTY_INPUT"
	ErrCodeEmptyIndex        = "ERR_403_EMPTY_INDEX"
	ErrCodeDimensionMismatch = "ERR_404_DIMENSION_MISMATCH"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// Stage names recorded in the "stage" detail.
const (
	StageLoad     = "load"
	StageChunk    = "chunk"
	StageBuild    = "build"
	StagePersist  = "persist"
	StageOpen     = "open"
	StageQuery    = "query"
	StageCompose  = "compose"
	StageGenerate = "generate"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_INVALID")
	numStr := code[4:7]

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryService
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	if code == ErrCodeIndexCorrupt {
		return SeverityFatal
	}

	// Retryable service errors get warning severity
	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Nothing inside the pipeline retries; callers decide.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbeddingService, ErrCodeGenerationService, ErrCodeQueryEmbedding:
		return true
	default:
		return false
	}
}
