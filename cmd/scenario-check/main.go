package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/mailster/scenario/internal/core"
	"github.com/mailster/scenario/internal/di"
	"github.com/mailster/scenario/internal/engine"
	"github.com/mailster/scenario/internal/factory"
)

func main() {
	function := flag.String("function", "", "protected function to authorize (send, subscribe, d_read, ...)")
	name := flag.String("name", "", "explicit scenario name (overrides configuration)")
	auth := flag.String("auth", "smtp", "authentication method (smtp, md5, pgp, smime, dkim)")
	sender := flag.String("sender", "", "sender address")
	listName := flag.String("list", "", "list name the request targets")
	robot := flag.String("robot", "", "robot/domain scope")
	debug := flag.Bool("debug", false, "degrade condition errors into reject decisions")
	verbose := flag.Bool("verbose", false, "enable debug logging")

	var ctxVars []string
	flag.Func("var", "extra context variable as key=value (repeatable)", func(s string) error {
		if !strings.Contains(s, "=") {
			return fmt.Errorf("expected key=value, got %q", s)
		}
		ctxVars = append(ctxVars, s)
		return nil
	})
	flag.Parse()

	if *function == "" {
		fmt.Fprintln(os.Stderr, "usage: scenario-check -function <name> [-sender addr] [-auth method] ...")
		os.Exit(2)
	}

	container, err := di.BuildContainer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build dependency container: %v\n", err)
		os.Exit(2)
	}

	err = container.Invoke(func(eng *engine.Engine, logger *zap.Logger, caches *factory.Caches) error {
		defer logger.Sync()
		defer caches.Stop()

		if *verbose {
			logger.Info("Evaluating decision",
				zap.String("function", *function),
				zap.String("sender", *sender),
				zap.String("auth", *auth))
		}

		ectx := core.NewEvaluationContext()
		if *sender != "" {
			ectx.Vars["sender"] = *sender
		}
		for _, kv := range ctxVars {
			key, value, _ := strings.Cut(kv, "=")
			ectx.Vars[key] = value
		}

		var list core.List
		if *listName != "" {
			list = &staticList{name: *listName, domain: *robot}
		}

		decision, err := eng.Decide(context.Background(), list, *robot, *function, *auth, ectx, engine.DecideOptions{
			Name:  *name,
			Debug: *debug,
		})
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(decision, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))

		if decision.Action != core.ActionDoIt {
			os.Exit(1)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "decision failed: %v\n", err)
		os.Exit(2)
	}
}

// staticList is a bare list handle for one-shot checks without a list
// backend: open, empty, no admin parameters. Membership predicates against
// it evaluate to false rather than failing.
type staticList struct {
	name   string
	domain string
}

func (l *staticList) Name() string    { return l.name }
func (l *staticList) Domain() string  { return l.domain }
func (l *staticList) Address() string { return l.name + "@" + l.domain }
func (l *staticList) Status() string  { return "open" }
func (l *staticList) Total() int      { return 0 }

// Every parameter reads as present-but-empty so rules referencing list
// parameters miss (deny) instead of erroring.
func (l *staticList) AdminParam(key string) (any, bool) { return nil, true }

func (l *staticList) IsAdmin(role, email string) (bool, error) { return false, nil }
func (l *staticList) IsMember(email string) (bool, error)      { return false, nil }
