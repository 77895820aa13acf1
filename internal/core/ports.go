package core

import (
	"time"
)

// List is the handle the engine needs from the list/object model. The engine
// never mutates the list; it only queries status, parameters and membership.
type List interface {
	// Name returns the bare list name.
	Name() string

	// Domain returns the robot/domain the list belongs to.
	Domain() string

	// Address returns the list posting address.
	Address() string

	// Status returns the list lifecycle status ("open", "closed", "pending", ...).
	Status() string

	// Total returns the current subscriber count.
	Total() int

	// AdminParam looks up a list admin parameter. ok is false when the key is
	// not a recognized parameter at all, which callers treat differently from
	// a recognized parameter with a nil/empty value.
	AdminParam(key string) (value any, ok bool)

	// IsAdmin reports whether email holds the given role ("owner", "editor")
	// on the list.
	IsAdmin(role, email string) (bool, error)

	// IsMember reports whether email is a list subscriber.
	IsMember(email string) (bool, error)
}

// Message is the handle the engine needs from a parsed message. Parsing and
// MIME handling happen upstream; the engine only reads.
type Message interface {
	// Header returns all values of the named header in message order.
	Header(name string) []string

	// Field returns a direct attribute of the message record (sender,
	// subject, spam_status, ...).
	Field(name string) (string, bool)

	// Body returns the decoded text body. ok is false when the message has
	// no body or is not text-typed.
	Body() (body string, ok bool)

	// Parts returns the decoded text parts of a multipart message.
	Parts() []MessagePart
}

// RobotConfig reads per-robot (per-domain) configuration.
type RobotConfig interface {
	// Get returns the value of a robot configuration parameter. ok is false
	// when the key is not a recognized parameter or carries no value.
	Get(robot, key string) (value string, ok bool)

	// Listmasters returns the listmaster addresses of the robot.
	Listmasters(robot string) []string
}

// UserStore fetches global user and subscriber records for the
// [user->k] / [user_attributes->k] / [subscriber->k] variable references.
type UserStore interface {
	// GlobalUser returns the global record for email, or nil when the user
	// is unknown (not an error).
	GlobalUser(email string) (*User, error)

	// Subscriber returns the membership record of email on list, or nil when
	// not subscribed.
	Subscriber(list List, email string) (map[string]string, error)
}

// ListResolver resolves a (possibly cross-robot) list reference such as
// "mylist" or "mylist@lists.example.org" to a handle.
type ListResolver interface {
	ResolveList(name, robot string) (List, error)
}

// Clock abstracts time for deterministic cache and date-predicate tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
