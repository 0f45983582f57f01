package constants

// LedgerStatus is the canonical status for idempotency ledger records.
type LedgerStatus string

// Stable values (store these exact strings).
const (
	LedgerStatusProcessing LedgerStatus = "PROCESSING" // first sight, work in flight
	LedgerStatusCompleted  LedgerStatus = "COMPLETED"  // side effects done, redelivery is a no-op
)

// PipelineState names the orchestrator's states for logging.
type PipelineState string

const (
	StateReceived      PipelineState = "RECEIVED"
	StateLedgerChecked PipelineState = "LEDGER_CHECKED"
	StateImageFetched  PipelineState = "IMAGE_FETCHED"
	StateExtracted     PipelineState = "EXTRACTED"
	StateResolved      PipelineState = "RESOLVED"
	StatePersisted     PipelineState = "PERSISTED"
	StateNotified      PipelineState = "NOTIFIED"
	StateCompleted     PipelineState = "COMPLETED"

	// Early-exit terminals.
	StateSkippedDuplicate PipelineState = "SKIPPED_DUPLICATE"
	StateNoFoodCompleted  PipelineState = "NO_FOOD_COMPLETED"
	StateFailed           PipelineState = "FAILED"
)
