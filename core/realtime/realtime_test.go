package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanJoin(t *testing.T) {
	tests := []struct {
		name          string
		topic         string
		userID        string
		schoolID      string
		platformAdmin bool
		want          bool
	}{
		{name: "own user topic", topic: UserTopic("u1"), userID: "u1", schoolID: "s1", want: true},
		{name: "other user topic", topic: UserTopic("u2"), userID: "u1", schoolID: "s1"},
		{name: "own school grades", topic: SchoolTopic("s1", ChannelGrades), userID: "u1", schoolID: "s1", want: true},
		{name: "own school announcements", topic: SchoolTopic("s1", ChannelAnnouncements), userID: "u1", schoolID: "s1", want: true},
		{name: "own school unknown channel", topic: SchoolTopic("s1", "fees"), userID: "u1", schoolID: "s1"},
		{name: "other school", topic: SchoolTopic("s2", ChannelGrades), userID: "u1", schoolID: "s1"},
		{name: "no school", topic: SchoolTopic("s1", ChannelGrades), userID: "u1"},
		{name: "platform admin any school", topic: SchoolTopic("s2", ChannelTimetable), userID: "u1", platformAdmin: true, want: true},
		{name: "malformed", topic: "school::grades", userID: "u1", schoolID: "s1"},
		{name: "garbage", topic: "lol", userID: "u1", schoolID: "s1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanJoin(tt.topic, tt.userID, tt.schoolID, tt.platformAdmin))
		})
	}
}
