package mqtt

import "fmt"

// Topic prefixes for the Smart Office message bus.
//
// All topics live under a single root: smartoffice/{category}/...
const (
	// TopicPrefix is the root for all Smart Office topics.
	TopicPrefix = "smartoffice"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "smartoffice/system"
)

// Topics provides builders for Smart Office MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.DeviceCommand("light-desk-12")
//	// Returns: "smartoffice/command/light-desk-12"
type Topics struct{}

// DeviceCommand returns the topic for commands to a device.
//
// Example: smartoffice/command/light-desk-12
func (Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, deviceID)
}

// MotionEvent returns the topic a motion sensor publishes detections on.
//
// Example: smartoffice/event/motion/sensor-lobby-1
func (Topics) MotionEvent(sensorID string) string {
	return fmt.Sprintf("%s/event/motion/%s", TopicPrefix, sensorID)
}

// AutomationFired returns the topic for rule trigger notifications.
//
// Example: smartoffice/automation/rule-abc123/fired
func (Topics) AutomationFired(ruleID string) string {
	return fmt.Sprintf("%s/automation/%s/fired", TopicPrefix, ruleID)
}

// SceneActivated returns the topic for scene activation notifications.
//
// Example: smartoffice/scene/after-hours/activated
func (Topics) SceneActivated(sceneID string) string {
	return fmt.Sprintf("%s/scene/%s/activated", TopicPrefix, sceneID)
}

// SystemStatus returns the system status topic.
//
// Example: smartoffice/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllMotionEvents returns a pattern matching all motion sensor events.
//
// Pattern: smartoffice/event/motion/+
func (Topics) AllMotionEvents() string {
	return fmt.Sprintf("%s/event/motion/+", TopicPrefix)
}

// AllCommands returns a pattern matching all device commands.
//
// Pattern: smartoffice/command/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+", TopicPrefix)
}

// AllTopics returns a pattern matching all Smart Office topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: smartoffice/#
func (Topics) AllTopics() string {
	return "smartoffice/#"
}
