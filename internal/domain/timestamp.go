package domain

// Timestamp is a seconds/nanoseconds pair as emitted by document stores for
// server-assigned times.
type Timestamp struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int64 `json:"nanoseconds"`
}
