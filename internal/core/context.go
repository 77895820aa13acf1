package core

import (
	"strconv"
	"time"
)

// EvaluationContext is the per-request fact base fed to condition
// evaluation. Vars holds scalar or list-of-scalar values; handles and
// sub-maps live in their own fields. The Decision Driver mutates the context
// in place while deriving fields; it lives for one request only and is not
// safe for concurrent use.
type EvaluationContext struct {
	Vars map[string]any

	List       List
	Message    Message
	CustomVars map[string]string
	Family     map[string]string

	// Lazily fetched sender records, cached for the lifetime of the context
	// so repeated [user->k]/[subscriber->k] references cost one lookup.
	user             *User
	userFetched      bool
	subscriber       map[string]string
	subscriberFetched bool
}

// NewEvaluationContext returns a context with an empty variable bag.
func NewEvaluationContext() *EvaluationContext {
	return &EvaluationContext{Vars: map[string]any{}}
}

// ApplyDefaults fills the required context keys that callers may omit.
func (c *EvaluationContext) ApplyDefaults(clock Clock) {
	if c.Vars == nil {
		c.Vars = map[string]any{}
	}
	if s, _ := c.Vars["sender"].(string); s == "" {
		c.Vars["sender"] = "nobody"
	}
	if s, _ := c.Vars["email"].(string); s == "" {
		c.Vars["email"] = c.Vars["sender"]
	}
	if s, _ := c.Vars["remote_host"].(string); s == "" {
		c.Vars["remote_host"] = "unknown_host"
	}
	if _, ok := c.Vars["execution_date"]; !ok {
		c.Vars["execution_date"] = strconv.FormatInt(clock.Now().Unix(), 10)
	}
}

// Sender returns the (defaulted) sender address.
func (c *EvaluationContext) Sender() string {
	s, _ := c.Vars["sender"].(string)
	return s
}

// Get looks up a generic context variable.
func (c *EvaluationContext) Get(name string) (any, bool) {
	v, ok := c.Vars[name]
	return v, ok
}

// UserRecord returns the sender's global user record, fetching it at most
// once per context. A nil record with a nil error means the user is unknown.
func (c *EvaluationContext) UserRecord(store UserStore) (*User, error) {
	if c.userFetched {
		return c.user, nil
	}
	sender := c.Sender()
	if sender == "" || sender == "nobody" || store == nil {
		c.userFetched = true
		return nil, nil
	}
	u, err := store.GlobalUser(sender)
	if err != nil {
		return nil, err
	}
	c.user = u
	c.userFetched = true
	return u, nil
}

// SubscriberRecord returns the sender's membership record on the context
// list, fetching it at most once per context.
func (c *EvaluationContext) SubscriberRecord(store UserStore) (map[string]string, error) {
	if c.subscriberFetched {
		return c.subscriber, nil
	}
	sender := c.Sender()
	if sender == "" || sender == "nobody" || c.List == nil || store == nil {
		c.subscriberFetched = true
		return nil, nil
	}
	rec, err := store.Subscriber(c.List, sender)
	if err != nil {
		return nil, err
	}
	c.subscriber = rec
	c.subscriberFetched = true
	return rec, nil
}

// ExecutionDate returns the execution_date variable as epoch seconds,
// falling back to the clock when unparsable.
func (c *EvaluationContext) ExecutionDate(clock Clock) time.Time {
	if s, ok := c.Vars["execution_date"].(string); ok {
		if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(epoch, 0)
		}
	}
	return clock.Now()
}
