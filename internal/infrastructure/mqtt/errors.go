package mqtt

import "errors"

// Errors returned by Client. Match them with errors.Is; most are wrapped
// with the broker's own error.
var (
	ErrNotConnected      = errors.New("mqtt: broker connection is down")
	ErrConnectionFailed  = errors.New("mqtt: could not reach broker")
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS rejects anything outside 0..2.
	ErrInvalidQoS = errors.New("mqtt: qos must be 0, 1 or 2")

	// ErrInvalidTopic rejects an empty topic.
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
