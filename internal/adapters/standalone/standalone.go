// Package standalone provides collaborator stand-ins for running the engine
// without a list/user backend, as the CLI tools do. User lookups report
// unknown users and list references fail to resolve, which the evaluator
// maps onto its missing-data and evaluation-error semantics.
package standalone

import (
	"fmt"

	"github.com/mailster/scenario/internal/core"
)

// UserStore knows no users.
type UserStore struct{}

func (UserStore) GlobalUser(email string) (*core.User, error) { return nil, nil }

func (UserStore) Subscriber(list core.List, email string) (map[string]string, error) {
	return nil, nil
}

// ListResolver resolves no lists.
type ListResolver struct{}

func (ListResolver) ResolveList(name, robot string) (core.List, error) {
	return nil, fmt.Errorf("no list backend configured, cannot resolve %s@%s", name, robot)
}
