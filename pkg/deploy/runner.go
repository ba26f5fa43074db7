// Package deploy runs tagged deployment scripts against a network and
// records what has been deployed.
package deploy

import (
	"context"
	"fmt"
	"slices"

	"github.com/gofiber/fiber/v2/log"
	"github.com/grexie/confidential-defi/pkg/signer"
	"github.com/grexie/confidential-defi/pkg/storage/interfaces"
)

type Env struct {
	Network     string
	Deployer    signer.Signer
	Deployments Deployments
}

// Script is one deployment step. Scripts with an ID run once per network;
// Dependencies name tags whose scripts must run first.
type Script struct {
	ID           string
	Tags         []string
	Dependencies []string
	Run          func(ctx context.Context, env *Env) error
}

type Runner struct {
	storage interfaces.IStorageBackend
	scripts []Script
}

func NewRunner(storage interfaces.IStorageBackend, scripts ...Script) *Runner {
	return &Runner{storage: storage, scripts: scripts}
}

// Plan returns the scripts selected by tags in execution order. With no tags
// every script is selected.
func (r *Runner) Plan(tags ...string) ([]Script, error) {
	if order, err := r.plan(tags...); err != nil {
		return nil, err
	} else {
		out := make([]Script, len(order))
		for i, j := range order {
			out[i] = r.scripts[j]
		}
		return out, nil
	}
}

// plan orders indexes into r.scripts.
func (r *Runner) plan(tags ...string) ([]int, error) {
	byTag := map[string][]int{}
	for i, s := range r.scripts {
		for _, t := range s.Tags {
			byTag[t] = append(byTag[t], i)
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(r.scripts))
	order := []int{}

	var visit func(i int, path []string) error
	visit = func(i int, path []string) error {
		s := r.scripts[i]
		name := scriptName(s, i)

		switch state[i] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("dependency cycle: %v -> %s", path, name)
		}

		state[i] = visiting
		for _, dep := range s.Dependencies {
			providers, ok := byTag[dep]
			if !ok {
				return fmt.Errorf("script %s depends on tag %q but no script provides it", name, dep)
			}
			for _, p := range providers {
				if p == i {
					continue
				}
				if err := visit(p, append(slices.Clone(path), name)); err != nil {
					return err
				}
			}
		}
		state[i] = done
		order = append(order, i)
		return nil
	}

	if len(tags) == 0 {
		for i := range r.scripts {
			if err := visit(i, nil); err != nil {
				return nil, err
			}
		}
		return order, nil
	}

	for _, t := range tags {
		providers, ok := byTag[t]
		if !ok {
			return nil, fmt.Errorf("no deployment script with tag %q", t)
		}
		for _, p := range providers {
			if err := visit(p, nil); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

func scriptName(s Script, i int) string {
	if s.ID != "" {
		return s.ID
	}
	return fmt.Sprintf("#%d", i)
}

// Run plans the scripts, then executes each one not yet recorded as executed
// on env.Network. It returns the IDs of the scripts that ran.
func (r *Runner) Run(ctx context.Context, env *Env, tags ...string) ([]string, error) {
	order, err := r.plan(tags...)
	if err != nil {
		return nil, err
	}

	ran := []string{}
	for _, i := range order {
		s := r.scripts[i]
		name := scriptName(s, i)

		if s.ID != "" {
			if executed, err := r.storage.IsScriptExecuted(ctx, env.Network, s.ID); err != nil {
				return ran, err
			} else if executed {
				log.Infof("skipping %s, already executed on %s", s.ID, env.Network)
				continue
			}
		}

		log.Infof("running %s (tags: %v)", name, s.Tags)
		if err := s.Run(ctx, env); err != nil {
			return ran, fmt.Errorf("script %s: %w", name, err)
		}

		if s.ID != "" {
			if err := r.storage.MarkScriptExecuted(ctx, env.Network, s.ID); err != nil {
				return ran, err
			}
		}
		ran = append(ran, name)
	}
	return ran, nil
}

// Tags lists every tag the runner knows about.
func (r *Runner) Tags() []string {
	out := []string{}
	for _, s := range r.scripts {
		for _, t := range s.Tags {
			if !slices.Contains(out, t) {
				out = append(out, t)
			}
		}
	}
	return out
}
