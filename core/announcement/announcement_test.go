package announcement

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/user"
)

func TestAnnouncement_IsFor(t *testing.T) {
	tests := []struct {
		name     string
		audience []string
		roles    []string
		want     bool
	}{
		{name: "everyone", audience: nil, roles: []string{user.RoleParent}, want: true},
		{name: "exact role", audience: []string{user.RoleTeacher}, roles: []string{user.RoleTeacher}, want: true},
		{name: "other role", audience: []string{user.RoleTeacher}, roles: []string{user.RoleFinanceOfficer}},
		{name: "role group", audience: []string{user.RoleStaff}, roles: []string{user.RoleFinanceOfficer}, want: true},
		{name: "parents group", audience: []string{user.RoleParent}, roles: []string{user.RoleParent}, want: true},
		{name: "no roles", audience: []string{user.RoleAdmin}, roles: nil},
		{name: "any role", audience: []string{user.RolePrincipal, user.RoleParent}, roles: []string{user.RoleTeacher, user.RoleParent}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Announcement{Audience: tt.audience}
			assert.Equal(t, tt.want, a.IsFor(tt.roles))
		})
	}
}

func TestAnnouncement_IsActive(t *testing.T) {
	now := time.Now().UTC()
	past, future := now.Add(-time.Hour), now.Add(time.Hour)

	assert.False(t, Announcement{}.IsActive(now))
	assert.True(t, Announcement{Published: true}.IsActive(now))
	assert.True(t, Announcement{Published: true, ExpiresAt: &future}.IsActive(now))
	assert.False(t, Announcement{Published: true, ExpiresAt: &past}.IsActive(now))
}

func TestNewAnnouncement_Validate(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	past, future := time.Now().Add(-time.Hour), time.Now().Add(time.Hour)
	tests := []struct {
		name    string
		na      NewAnnouncement
		wantErr bool
	}{
		{name: "valid", na: NewAnnouncement{Title: " Sports day ", Content: "Friday", Audience: []string{" STAFF: ", "parent:", "parent:"}}},
		{name: "missing title", na: NewAnnouncement{Content: "Friday"}, wantErr: true},
		{name: "unknown audience", na: NewAnnouncement{Title: "t", Content: "c", Audience: []string{"alumni"}}, wantErr: true},
		{name: "platform audience", na: NewAnnouncement{Title: "t", Content: "c", Audience: []string{user.RolePlatformAdmin}}, wantErr: true},
		{name: "bad priority", na: NewAnnouncement{Title: "t", Content: "c", Priority: "urgent"}, wantErr: true},
		{name: "already expired", na: NewAnnouncement{Title: "t", Content: "c", ExpiresAt: &past}, wantErr: true},
		{name: "expires before publish", na: NewAnnouncement{Title: "t", Content: "c", PublishAt: &future, ExpiresAt: &future}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.na.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, "Sports day", tt.na.Title)
			assert.Equal(t, PriorityNormal, tt.na.Priority)
			assert.Equal(t, []string{user.RoleStaff, user.RoleParent}, tt.na.Audience)
		})
	}
}
