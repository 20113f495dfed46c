// Package realtime defines the events pushed to subscribed clients and the topics they are published on.
package realtime

import (
	"context"
	"strings"
	"time"
)

// Channels of a school topic.
const (
	ChannelAnnouncements = "announcements"
	ChannelGrades        = "grades"
	ChannelTimetable     = "timetable"
)

// Events
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

var schoolChannels = []string{ChannelAnnouncements, ChannelGrades, ChannelTimetable}

type (
	Event struct {
		Topic   string      `json:"topic"`
		Event   string      `json:"event"`
		Payload interface{} `json:"payload"`
		SentAt  time.Time   `json:"sent_at"`
	}

	Publisher interface {
		Publish(ctx context.Context, evt Event) error
	}

	// Broker fans events out to the subscribers of their topic.
	Broker interface {
		Publisher

		// Subscribe registers fn for topic; calling the returned func removes it.
		Subscribe(topic string, fn func(Event)) (unsubscribe func())
	}
)

func SchoolTopic(schoolID, channel string) string {
	return "school:" + schoolID + ":" + channel
}

func UserTopic(userID string) string {
	return "user:" + userID
}

// NewEvent is a shortcut for an Event stamped now.
func NewEvent(topic, event string, payload interface{}) Event {
	return Event{Topic: topic, Event: event, Payload: payload, SentAt: time.Now().UTC()}
}

// CanJoin reports whether a user may subscribe to topic.
// Users may join their own user topic and the channels of their school; platform admins may join any school channel.
func CanJoin(topic, userID, schoolID string, platformAdmin bool) bool {
	if topic == UserTopic(userID) {
		return true
	}
	parts := strings.Split(topic, ":")
	if len(parts) != 3 || parts[0] != "school" || parts[1] == "" {
		return false
	}
	if !isSchoolChannel(parts[2]) {
		return false
	}
	return platformAdmin || (schoolID != "" && parts[1] == schoolID)
}

func isSchoolChannel(channel string) bool {
	for _, c := range schoolChannels {
		if c == channel {
			return true
		}
	}
	return false
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
