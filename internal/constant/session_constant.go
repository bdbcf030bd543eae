package constant

const (
	// SessionReadyMessage is the first frame a client sees after connecting.
	SessionReadyMessage = "Documents indexed successfully. You can now ask questions."

	// SessionEventsTopic is the in-process bus topic for lifecycle events.
	SessionEventsTopic = "SESSION_EVENTS"

	// Close reasons sent with websocket policy-violation closes.
	CloseReasonNotFound     = "Session not found"
	CloseReasonNotReady     = "Upload documents first"
	CloseReasonAlreadyBound = "Session already has an active connection"
	CloseReasonClosed       = "Session is closed"
)
