// Package appointment holds the appointment lifecycle: which actor may move an
// appointment between statuses, and from where.
package appointment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/model"
)

var (
	// ErrInvalidTransition means the action is not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrForbidden means the actor's role may not perform the action at all.
	ErrForbidden = errors.New("action not permitted for role")
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
)

// Actor is the authenticated caller acting on appointments.
type Actor struct {
	ID   string
	Role Role
}

type Action string

const (
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
)

type rule struct {
	from []model.Status
	to   model.Status
	role Role
}

var rules = map[Action]rule{
	ActionAccept:   {from: []model.Status{model.StatusPending}, to: model.StatusAccepted, role: RoleOwner},
	ActionReject:   {from: []model.Status{model.StatusPending}, to: model.StatusRejected, role: RoleOwner},
	ActionCancel:   {from: []model.Status{model.StatusPending, model.StatusAccepted}, to: model.StatusCancelled, role: RoleCustomer},
	ActionComplete: {from: []model.Status{model.StatusAccepted}, to: model.StatusCompleted, role: RoleOwner},
}

func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := rules[a]; !ok {
		return "", fmt.Errorf("unknown action %q", raw)
	}
	return a, nil
}

// Actor is the role that performs the action.
func (a Action) Actor() Role {
	return rules[a].role
}

// Target is the status the action moves an appointment into.
func (a Action) Target() model.Status {
	return rules[a].to
}

// Next returns the status an appointment in current moves to when role performs action.
// It never mutates anything; callers decide whether ErrInvalidTransition is
// reported or swallowed.
func Next(current model.Status, action Action, role Role) (model.Status, error) {
	r, ok := rules[action]
	if !ok {
		return current, fmt.Errorf("unknown action %q", action)
	}
	if r.role != role {
		return current, ErrForbidden
	}
	for _, from := range r.from {
		if from == current {
			return r.to, nil
		}
	}
	return current, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, current)
}

// CanTransition reports whether action is valid from current for role.
func CanTransition(current model.Status, action Action, role Role) bool {
	_, err := Next(current, action, role)
	return err == nil
}

// Terminal statuses admit no further action.
func Terminal(s model.Status) bool {
	switch s {
	case model.StatusRejected, model.StatusCancelled, model.StatusCompleted:
		return true
	}
	return false
}
