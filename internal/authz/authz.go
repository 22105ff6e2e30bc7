// Package authz evaluates validated token claims against endpoint
// requirements and emits structured allow/deny decisions.
//
// Deny reasons are deliberately distinct: "unauthenticated" maps to a 401
// challenge while "wrong role" and "wrong token kind" map to 403. Collapsing
// them would be an observable regression for API consumers.
package authz

import (
	"strings"

	"github.com/GogiGunia/Toolidol/internal/token"
)

// Reason explains why a request was denied.
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonUnauthenticated: no validated claims were presented.
	ReasonUnauthenticated
	// ReasonWrongRole: the principal's role is outside the required set.
	ReasonWrongRole
	// ReasonWrongTokenKind: the token kind does not match the endpoint,
	// e.g. a refresh token presented to a resource endpoint.
	ReasonWrongTokenKind
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonWrongRole:
		return "wrong role"
	case ReasonWrongTokenKind:
		return "wrong token kind"
	default:
		return "unknown"
	}
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Allow returns a permitting decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny returns a rejecting decision with the given reason.
func Deny(reason Reason) Decision { return Decision{Reason: reason} }

// Requirement describes what an endpoint demands from a caller. Kind is
// always checked; an empty role set means any role is acceptable.
type Requirement struct {
	Kind  token.Kind
	Roles []string
}

// Decide evaluates validated claims against a requirement. Claims may be
// nil, meaning no credential was presented or validation failed.
func Decide(claims *token.Claims, req Requirement) Decision {
	if claims == nil || strings.TrimSpace(claims.Subject) == "" {
		return Deny(ReasonUnauthenticated)
	}
	if req.Kind != "" && claims.Typ != req.Kind {
		return Deny(ReasonWrongTokenKind)
	}
	if len(req.Roles) > 0 {
		found := false
		for _, role := range req.Roles {
			if strings.EqualFold(role, claims.Role) {
				found = true
				break
			}
		}
		if !found {
			return Deny(ReasonWrongRole)
		}
	}
	return Allow()
}
