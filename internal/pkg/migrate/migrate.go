// Package migrate orders schema migrations by semantic version.
package migrate

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Migration is one forward schema step.
type Migration struct {
	Version string
	Up      string
}

// Pending returns the migrations newer than current, oldest first. An empty
// current means nothing has been applied.
func Pending(current string, all []Migration) ([]Migration, error) {
	applied := semver.MustParse("0.0.0")
	if current != "" {
		v, err := semver.NewVersion(current)
		if err != nil {
			return nil, fmt.Errorf("invalid current schema version %s: %w", current, err)
		}
		applied = v
	}

	type versioned struct {
		v *semver.Version
		m Migration
	}
	list := make([]versioned, 0, len(all))
	for _, m := range all {
		v, err := semver.NewVersion(m.Version)
		if err != nil {
			return nil, fmt.Errorf("invalid migration version %s: %w", m.Version, err)
		}
		if !applied.LessThan(v) {
			continue
		}
		list = append(list, versioned{v: v, m: m})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].v.LessThan(list[j].v) })

	out := make([]Migration, 0, len(list))
	for _, it := range list {
		out = append(out, it.m)
	}
	return out, nil
}
