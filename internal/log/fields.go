package log

const (
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldRoute     = "route"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	FieldService = "service"

	FieldUserID    = "user_id"
	FieldSessionID = "session_id"
	FieldPartnerID = "partner_id"
	FieldEvent     = "event"
)
