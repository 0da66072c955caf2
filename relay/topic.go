package relay

// Topics published to on signal change
const (
	TopicCurrentSpeed             = "sampleapp/currentSpeed"
	TopicCurrentLongitudinalAccel = "sampleapp/currentLongitudinalAccel"
	TopicCurrentLateralAccel      = "sampleapp/currentLateralAccel"
	TopicCurrentVerticalAccel     = "sampleapp/currentVerticalAccel"
)

// Request topics answered by the relay
const (
	TopicGetSpeed             = "sampleapp/getSpeed"
	TopicGetLongitudinalAccel = "sampleapp/getLongitudinalAccel"
	TopicGetLateralAccel      = "sampleapp/getLateralAccel"
	TopicGetVerticalAccel     = "sampleapp/getVerticalAccel"
)

// ResponseTopic returns the response topic statically paired with the
// given request topic
func ResponseTopic(requestTopic string) string {
	return requestTopic + "/response"
}
