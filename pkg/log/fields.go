package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Room
	FieldRoomID          = "room_id"
	FieldBroadcastStatus = "broadcast_status"
	FieldPlaybackState   = "playback_state"
	FieldPositionMs      = "position_ms"
	FieldClientID        = "client_id"

	// Service
	FieldService = "service"
	FieldTask    = "task"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
