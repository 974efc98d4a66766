package capture

// Reason is the user-facing category of a capture failure.
type Reason string

const (
	ReasonAlreadyEnrolled  Reason = "already_enrolled"
	ReasonNotEnrolled      Reason = "not_enrolled"
	ReasonPermissionDenied Reason = "permission_denied"
	ReasonNoFaceDetected   Reason = "no_face_detected"
	ReasonTimeout          Reason = "timeout"
	ReasonRateLimited      Reason = "rate_limited"
	ReasonSessionExpired   Reason = "session_expired"
	ReasonInvalidPayload   Reason = "invalid_payload"
	ReasonUnclassified     Reason = "unclassified"
)

// Widget error codes, as emitted by the embedded biometric widget.
const (
	widgetCodeEnrollConflict   = 2
	widgetCodePermissionDenied = 3
	widgetCodeSessionExpired   = 6
	widgetCodeTimeout          = 8
	widgetCodeRateLimited      = 12
)

var widgetNoFaceCodes = map[int]struct{}{5: {}, 9: {}, 10: {}}

// ClassifyWidgetError maps a biometric widget error code to a Reason.
// Code 2 is ambiguous: during enrollment it means the face is already
// registered, during authentication that it is not.
func ClassifyWidgetError(code int, mode Mode) Reason {
	switch code {
	case widgetCodeEnrollConflict:
		if mode == ModeEnroll {
			return ReasonAlreadyEnrolled
		}
		return ReasonNotEnrolled
	case widgetCodePermissionDenied:
		return ReasonPermissionDenied
	case widgetCodeSessionExpired:
		return ReasonSessionExpired
	case widgetCodeTimeout:
		return ReasonTimeout
	case widgetCodeRateLimited:
		return ReasonRateLimited
	}
	if _, ok := widgetNoFaceCodes[code]; ok {
		return ReasonNoFaceDetected
	}
	return ReasonUnclassified
}
