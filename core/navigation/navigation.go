// Package navigation holds the menu of the portal and filters it by role.
package navigation

import (
	"strings"

	"github.com/edufam/edufam/core/user"
)

type Item struct {
	Key   string   `json:"key"`
	Title string   `json:"title"`
	Path  string   `json:"path"`
	Icon  string   `json:"icon"`
	Roles []string `json:"-"` // roles or role prefixes allowed to see the item
}

var (
	everyone = []string{user.RolePlatformAdmin, user.RoleAdmin, user.RoleStaff, user.RoleParent}
	school   = []string{user.RoleAdmin, user.RoleStaff, user.RoleParent}
	admins   = []string{user.RolePlatformAdmin, user.RoleAdmin}
	staff    = []string{user.RoleAdmin, user.RoleStaff}
	teaching = []string{user.RoleAdmin, user.RoleTeacher}
	finance  = []string{user.RoleAdmin, user.RoleFinanceOfficer}

	// Menu in display order.
	Menu = []Item{
		{Key: "dashboard", Title: "Dashboard", Path: "/dashboard", Icon: "home", Roles: everyone},
		{Key: "schools", Title: "Schools", Path: "/schools", Icon: "building", Roles: []string{user.RolePlatformAdmin}},
		{Key: "users", Title: "Users", Path: "/users", Icon: "users", Roles: admins},
		{Key: "classes", Title: "Classes", Path: "/classes", Icon: "layers", Roles: staff},
		{Key: "subjects", Title: "Subjects", Path: "/subjects", Icon: "book", Roles: teaching},
		{Key: "students", Title: "Students", Path: "/students", Icon: "user-graduate", Roles: school},
		{Key: "grades", Title: "Grades", Path: "/grades", Icon: "clipboard", Roles: school},
		{Key: "grade-approvals", Title: "Grade Approvals", Path: "/grades/approvals", Icon: "check-square", Roles: []string{user.RoleAdmin}},
		{Key: "timetable", Title: "Timetable", Path: "/timetable", Icon: "calendar", Roles: school},
		{Key: "attendance", Title: "Attendance", Path: "/attendance", Icon: "user-check", Roles: []string{user.RoleAdmin, user.RoleTeacher, user.RoleParent}},
		{Key: "fees", Title: "Fees", Path: "/fees", Icon: "wallet", Roles: []string{user.RoleAdmin, user.RoleFinanceOfficer, user.RoleParent}},
		{Key: "payments", Title: "Payments", Path: "/fees/payments", Icon: "credit-card", Roles: finance},
		{Key: "announcements", Title: "Announcements", Path: "/announcements", Icon: "megaphone", Roles: school},
		{Key: "messages", Title: "Messages", Path: "/messages", Icon: "mail", Roles: school},
		{Key: "reports", Title: "Reports", Path: "/reports", Icon: "bar-chart", Roles: []string{user.RoleAdmin, user.RoleTeacher, user.RoleParent}},
		{Key: "audit-logs", Title: "Audit Logs", Path: "/audit-logs", Icon: "shield", Roles: admins},
		{Key: "settings", Title: "Settings", Path: "/settings", Icon: "settings", Roles: everyone},
	}
)

// Allows reports whether role is one of the item roles or starts with one of its role prefixes.
func (it Item) Allows(role string) bool {
	for _, r := range it.Roles {
		if role == r || (strings.HasSuffix(r, ":") && strings.HasPrefix(role, r)) {
			return true
		}
	}
	return false
}

// ForRoles returns the menu items any of roles may see, in menu order.
func ForRoles(roles []string) []Item {
	items := make([]Item, 0, len(Menu))
	for _, it := range Menu {
		for _, role := range roles {
			if it.Allows(role) {
				items = append(items, it)
				break
			}
		}
	}
	return items
}
