package models

// ReadReceipt records "reader has seen message". At most one receipt exists
// per (message, reader) pair; the store key is the uniqueness constraint.
type ReadReceipt struct {
	MessageID string `json:"message_id"`
	ReaderID  string `json:"reader_id"`
	// ReadTS is the acknowledgment timestamp in UTC nanoseconds.
	ReadTS int64 `json:"read_ts"`
}
