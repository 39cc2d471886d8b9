package mqtt

import "strings"

// CommandSuffix is the last segment of every inbound write topic.
const CommandSuffix = "set"

// statusSegment names the bridge's own presence topic under the prefix.
// Device addresses never contain lower-case letters, so it cannot
// collide with a device state topic.
const statusSegment = "bridge/status"

// Topics builds the bridge's MQTT topics under a configurable prefix.
//
//	topics := mqtt.Topics{Prefix: "plc"}
//	topics.DeviceState("D0")   // "plc/D0"
//	topics.DeviceCommand("M0") // "plc/M0/set"
//	topics.CommandWildcard()   // "plc/+/set"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.TrimSuffix(t.Prefix, "/")
	if p == "" {
		return "plc"
	}
	return p
}

// DeviceState returns the topic a device's value is published on.
func (t Topics) DeviceState(address string) string {
	return t.prefix() + "/" + address
}

// DeviceCommand returns the topic a write for address arrives on.
func (t Topics) DeviceCommand(address string) string {
	return t.prefix() + "/" + address + "/" + CommandSuffix
}

// CommandWildcard matches every device's command topic.
func (t Topics) CommandWildcard() string {
	return t.prefix() + "/+/" + CommandSuffix
}

// Status returns the retained online/offline topic, also used for the LWT.
func (t Topics) Status() string {
	return t.prefix() + "/" + statusSegment
}
