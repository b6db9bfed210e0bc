package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/envmgr/envmgr/internal/cli/client"
	"github.com/envmgr/envmgr/internal/clierr"
)

// varDiff describes how incoming variables would change the current set.
type varDiff struct {
	Added   []string // keys only in incoming
	Changed []string // keys in both with different values
	Removed []string // keys only in current
}

// Empty reports whether applying the diff would change nothing.
func (d varDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Removed) == 0
}

// diffVars compares the current variable set against an incoming one.
// All key slices come back sorted for stable output.
func diffVars(current, incoming map[string]string) varDiff {
	var d varDiff
	for k, v := range incoming {
		cur, ok := current[k]
		switch {
		case !ok:
			d.Added = append(d.Added, k)
		case cur != v:
			d.Changed = append(d.Changed, k)
		}
	}
	for k := range current {
		if _, ok := incoming[k]; !ok {
			d.Removed = append(d.Removed, k)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Changed)
	sort.Strings(d.Removed)
	return d
}

// resolveEnvironment picks the environment a switch argument refers to.
// The alias table is consulted first; the result (or the raw argument) is
// then matched case-insensitively against environment names. Zero matches
// and multiple matches are both errors.
func resolveEnvironment(aliases map[string]string, envs []client.Environment, arg string) (client.Environment, error) {
	target := arg
	if resolved, ok := aliases[arg]; ok {
		target = resolved
	}

	var matches []client.Environment
	for _, env := range envs {
		if strings.EqualFold(env.Name, target) {
			matches = append(matches, env)
		}
	}
	switch len(matches) {
	case 0:
		return client.Environment{}, fmt.Errorf("%w: %q", clierr.ErrNoMatch, arg)
	case 1:
		return matches[0], nil
	default:
		return client.Environment{}, fmt.Errorf("%w: %q matches %d environments", clierr.ErrAmbiguous, arg, len(matches))
	}
}
