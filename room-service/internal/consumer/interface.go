package consumer

import "context"

// MovieUpdatedEvent is published by the media pipeline when a movie's
// metadata or transcoding status changes.
type MovieUpdatedEvent struct {
	MovieID   string `json:"movie_id"`
	Status    string `json:"status"`
	HLSPath   string `json:"hls_path,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// MovieUpdatedHandler handles incoming movie-updated events.
type MovieUpdatedHandler interface {
	HandleMovieUpdated(ctx context.Context, event *MovieUpdatedEvent) error
}

// MovieUpdatedConsumer defines the interface for consuming movie-updated events.
type MovieUpdatedConsumer interface {
	Start(ctx context.Context) error
	Close() error
}
