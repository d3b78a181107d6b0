package app

import (
	"labdesk/api/internal/draft"
	"labdesk/api/internal/rbac"
)

// articleVisibleTo applies the payload's visibility setting to the caller.
// All roles are staff, so public and team articles are always readable;
// private articles are limited to their author, and restricted articles to
// the users named on them. Managers and admins see everything.
func (s *Service) articleVisibleTo(session Session, p draft.Article) bool {
	role := rbac.Normalize(session.Role)
	if role == rbac.RoleAdmin || role == rbac.RoleManager {
		return true
	}
	switch p.Visibility {
	case draft.VisibilityPrivate:
		return p.AuthorID == session.UserID
	case draft.VisibilitySelected:
		if p.AuthorID == session.UserID {
			return true
		}
		for _, id := range p.AllowedUserIDs {
			if id == session.UserID {
				return true
			}
		}
		return false
	default:
		return true
	}
}
