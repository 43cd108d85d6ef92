package events

// Internal bus event types. These route lifecycle notifications between
// the store-facing coordinator and the per-chain executors.
const (
	EVENT_TRANSFER_PENDING        = "Transfer.Pending"
	EVENT_TRANSFER_EXECUTABLE     = "Transfer.Executable"
	EVENT_TRANSFER_SUCCESS        = "Transfer.Success"
	EVENT_TRANSFER_FAILED         = "Transfer.Failed"
	EVENT_TRANSFER_ROLLBACK_READY = "Transfer.RollbackReady"
)
