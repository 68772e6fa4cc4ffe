package authz

import (
	"strings"
)

const (
	globalDomain          = "global"
	subjectUserPrefix     = "user"
	rolePrefix            = "role"
	subjectSeparator      = ":"
	defaultActionWildcard = "*"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Request encapsulates all parameters required to evaluate a Casbin rule.
type Request struct {
	Subject string
	Domain  string
	Object  string
	Action  string
}

// NewRequest constructs a Request with normalized object and action.
func NewRequest(subject, domain, object, action string) Request {
	return Request{
		Subject: subject,
		Domain:  domain,
		Object:  ObjectName(object),
		Action:  NormalizeAction(action),
	}
}

// SubjectForCaller builds a subject identifier in the form user:{subject}.
func SubjectForCaller(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "anonymous"
	}
	if strings.HasPrefix(subject, subjectUserPrefix+subjectSeparator) {
		return subject
	}
	return subjectUserPrefix + subjectSeparator + subject
}

// SubjectForRole returns the canonical identifier for a role-based subject.
func SubjectForRole(roleSlug string) string {
	roleSlug = strings.TrimSpace(roleSlug)
	if roleSlug == "" {
		roleSlug = "unnamed"
	}
	if strings.HasPrefix(roleSlug, rolePrefix+subjectSeparator) {
		return roleSlug
	}
	return rolePrefix + subjectSeparator + strings.ToLower(roleSlug)
}

// DomainForOrganization maps an organization onto a casbin domain. Entities
// without an organization live in the global domain.
func DomainForOrganization(orgID string) string {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return globalDomain
	}
	return orgID
}

// ObjectName returns the canonical, lowercased collection name.
func ObjectName(collection string) string {
	collection = strings.ToLower(strings.TrimSpace(collection))
	if collection == "" {
		return "resource"
	}
	return collection
}

// NormalizeAction returns a normalized action string.
func NormalizeAction(action string) string {
	action = strings.ToLower(strings.TrimSpace(action))
	if action == "" {
		return defaultActionWildcard
	}
	return action
}
