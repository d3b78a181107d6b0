package rbac

type Role string
type Action string

const (
	RoleReviewer   Role = "reviewer"
	RoleEditor     Role = "editor"
	RoleHeadSector Role = "headSector"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
)

const (
	ActionRead         Action = "read"
	ActionWriteArticle Action = "writeArticle"
	ActionPublish      Action = "publish"
	ActionMoveStage    Action = "moveStage"
	ActionManageUsers  Action = "manageUsers"
)

// Can answers whether a role may perform an action. Reviewers read and
// publish-gate articles; editors write; head-of-sector additionally moves
// briefs through the pipeline; managers and admins do everything except that
// only admins manage users.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleManager:
		return action != ActionManageUsers
	case RoleHeadSector:
		return action == ActionRead || action == ActionWriteArticle ||
			action == ActionPublish || action == ActionMoveStage
	case RoleEditor:
		return action == ActionRead || action == ActionWriteArticle
	case RoleReviewer:
		return action == ActionRead || action == ActionPublish
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleReviewer, RoleEditor, RoleHeadSector, RoleManager, RoleAdmin:
		return Role(role)
	default:
		return RoleReviewer
	}
}
