package domain

// Movie status values as reported by the transcoding pipeline.
const (
	MovieStatusPending    = "pending"
	MovieStatusProcessing = "processing"
	MovieStatusReady      = "ready"
	MovieStatusFailed     = "failed"
)

// Movie is the playable media a room can reference.
type Movie struct {
	ID      string `json:"movie_id"`
	Title   string `json:"title"`
	HLSPath string `json:"-"`
	HLSURL  string `json:"hls_url,omitempty"`
	Status  string `json:"status"`
}
