// Package session keeps the client side view of the login session.
//
// A Coordinator restores a persisted session without waiting for the network and then
// asks the server once, in the background, whether the token is still good. Only a
// definitive rejection undoes the restore; an unreachable server leaves it in place.
//
//	store, _ := session.OpenFile(cfg.SessionFile)
//	c := session.New(store, apiClient)
//	defer c.Close()
//
//	_ = c.Start(ctx)
//	if c.Status() == session.StatusAuthenticated { ... }
package session

import (
	"errors"
	"fmt"

	"github.com/bizdir/bizdir/internal/client/api"
)

var (
	// ErrAlreadyAuthenticated is returned by Login while a session is active.
	ErrAlreadyAuthenticated = errors.New("session: already authenticated")

	// ErrInvalidSession is returned by Login for an empty token or an incomplete user.
	ErrInvalidSession = errors.New("session: token and user with id and username are required")

	// ErrRestoring is returned by Login while Start has not decided yet.
	ErrRestoring = errors.New("session: restore in progress")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("session: already started")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session: coordinator closed")
)

// State is the main state of a Coordinator.
type State int

// States of a Coordinator.
const (
	StateUninitialized State = iota
	StateRestoring
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRestoring:
		return "restoring"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Reachability is what the last contact said about the server.
type Reachability int

// Reachability values.
const (
	ReachabilityUnknown Reachability = iota
	Reachable
	Unreachable
)

func (r Reachability) String() string {
	switch r {
	case Reachable:
		return "reachable"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// Status is the three way answer callers branch on.
type Status int

// Status values.
const (
	StatusUnknown Status = iota
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// UserSnapshot is the locally kept copy of the user. The server stays authoritative.
type UserSnapshot struct {
	ID          uint64   `json:"id"`
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	Active      bool     `json:"isActive"`
}

// FromAPI converts the server's user into a snapshot.
func FromAPI(u api.User) UserSnapshot {
	return UserSnapshot{
		ID:          u.ID,
		Username:    u.Username,
		Role:        u.Role,
		Permissions: append([]string(nil), u.Permissions...),
		Active:      u.Active,
	}
}

func (u *UserSnapshot) valid() bool {
	return u != nil && u.ID != 0 && u.Username != ""
}

func (u *UserSnapshot) clone() *UserSnapshot {
	if u == nil {
		return nil
	}

	c := *u
	c.Permissions = append([]string(nil), u.Permissions...)

	return &c
}

// Snapshot is a copy of the coordinator state at one point in time.
type Snapshot struct {
	State           State
	Token           string
	User            *UserSnapshot
	Initialized     bool
	Loading         bool
	ServerReachable Reachability
}

// Status maps the state to the three way answer.
func (s Snapshot) Status() Status {
	switch s.State {
	case StateAuthenticated:
		return StatusAuthenticated
	case StateAnonymous:
		return StatusAnonymous
	default:
		return StatusUnknown
	}
}
