package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the Lifelog MQTT hierarchy.
//
//	lifelog/event/{kind}             inbound behavioural events
//	lifelog/automation/log/{userID}  outbound action outcomes
//	lifelog/system/status            retained online/offline status (LWT)
const (
	// TopicPrefix is the root of every Lifelog topic.
	TopicPrefix = "lifelog"

	// TopicPrefixEvent is the base for inbound event topics.
	TopicPrefixEvent = TopicPrefix + "/event"

	// TopicPrefixAutomation is the base for automation outcome topics.
	TopicPrefixAutomation = TopicPrefix + "/automation"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics provides builders for Lifelog MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	topics.Event("mood_logged")   // "lifelog/event/mood_logged"
//	topics.AutomationLog("u-1")   // "lifelog/automation/log/u-1"
type Topics struct{}

// Event returns the ingress topic for one event kind.
//
// Example: lifelog/event/mood_logged
func (Topics) Event(kind string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixEvent, kind)
}

// AutomationLog returns the topic outcomes for a user's routines are published on.
//
// Example: lifelog/automation/log/user-123
func (Topics) AutomationLog(userID string) string {
	return fmt.Sprintf("%s/log/%s", TopicPrefixAutomation, userID)
}

// SystemStatus returns the system status topic.
//
// Example: lifelog/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllEvents returns a pattern matching every inbound event topic.
//
// Pattern: lifelog/event/+
func (Topics) AllEvents() string {
	return TopicPrefixEvent + "/+"
}

// ParseEventTopic extracts the event kind from an ingress topic.
// Returns false for topics outside lifelog/event/ or with extra levels.
func ParseEventTopic(topic string) (kind string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixEvent+"/")
	if !found || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
