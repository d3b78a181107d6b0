package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "reviewer read", role: RoleReviewer, action: ActionRead, allow: true},
		{name: "reviewer publish", role: RoleReviewer, action: ActionPublish, allow: true},
		{name: "reviewer write", role: RoleReviewer, action: ActionWriteArticle, allow: false},
		{name: "editor write", role: RoleEditor, action: ActionWriteArticle, allow: true},
		{name: "editor publish", role: RoleEditor, action: ActionPublish, allow: false},
		{name: "editor stage", role: RoleEditor, action: ActionMoveStage, allow: false},
		{name: "head sector stage", role: RoleHeadSector, action: ActionMoveStage, allow: true},
		{name: "head sector users", role: RoleHeadSector, action: ActionManageUsers, allow: false},
		{name: "manager stage", role: RoleManager, action: ActionMoveStage, allow: true},
		{name: "manager users", role: RoleManager, action: ActionManageUsers, allow: false},
		{name: "admin users", role: RoleAdmin, action: ActionManageUsers, allow: true},
		{name: "unknown role", role: Role("ghost"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("manager"); got != RoleManager {
		t.Fatalf("Normalize(manager) = %q", got)
	}
	if got := Normalize("superuser"); got != RoleReviewer {
		t.Fatalf("unknown role should fall back to reviewer, got %q", got)
	}
}
