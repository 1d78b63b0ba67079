package constants

// Outcome is the terminal state of one pipeline run.
type Outcome string

// Stable values (published on the bus and stored in the ingest ledger).
const (
	OutcomePersisted Outcome = "PERSISTED"
	OutcomeRejected  Outcome = "REJECTED"
)

// RejectReason names why a run ended without extraction.
type RejectReason string

const (
	ReasonNoMatch             RejectReason = "no_match"
	ReasonClassifierFailure   RejectReason = "classifier_failure"
	ReasonUnknownLayout       RejectReason = "unknown_layout"
	ReasonUnparseableResponse RejectReason = "unparseable_response"
	ReasonMissingItems        RejectReason = "missing_items"
	ReasonSchemaViolation     RejectReason = "schema_violation"
	ReasonInferenceFailed     RejectReason = "inference_failed"
	ReasonInferenceTimeout    RejectReason = "inference_timeout"
	ReasonImageUnreadable     RejectReason = "image_unreadable"
)

// FailureStage identifies where a single record was dropped.
type FailureStage string

const (
	StageValidate    FailureStage = "validate"    // item rejected by coercion or schema
	StageCorroborate FailureStage = "corroborate" // too few visible fields
	StagePersist     FailureStage = "persist"
)
