// Package retention selects snapshots for deletion under keep-N rules.
package retention

import (
	"fmt"
	"regexp"

	"github.com/Combustible/minimal-zfs-backups/internal/zfs"
)

// Rule marks every matching snapshot beyond the Keep most recent ones for
// deletion. The pattern must match the whole snapshot name (or the whole
// dataset@name form), not a substring.
type Rule struct {
	Pattern string
	Keep    int

	re *regexp.Regexp
}

// NewRule compiles a rule. Keep must be non-negative; a Keep of zero
// deletes every match.
func NewRule(pattern string, keep int) (Rule, error) {
	if keep < 0 {
		return Rule{}, fmt.Errorf("rule 'keep' must be >= 0, got %d", keep)
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return Rule{}, fmt.Errorf("invalid regex in pattern %q: %w", pattern, err)
	}
	return Rule{Pattern: pattern, Keep: keep, re: re}, nil
}

// Matches reports whether the rule applies to a snapshot. Both the short
// name and the fully-qualified dataset@name form are tried, so a pattern
// can be anchored to one dataset via Qualify.
func (r Rule) Matches(s zfs.Snapshot) bool {
	return r.re.MatchString(s.Name) || r.re.MatchString(s.FullName())
}

// Qualify returns a copy of the rule anchored to one dataset, so that
// identically-named snapshots on unrelated datasets never cross-match.
func (r Rule) Qualify(dataset string) (Rule, error) {
	return NewRule(regexp.QuoteMeta(dataset)+"@(?:"+r.Pattern+")", r.Keep)
}

// SnapshotsToDelete evaluates each rule independently over the history
// (oldest first) and returns the union of deletion candidates, deduplicated
// by full name, in first-seen order. Keep counts are per rule, not global.
func SnapshotsToDelete(snapshots []zfs.Snapshot, rules []Rule) []zfs.Snapshot {
	var toDelete []zfs.Snapshot
	seen := make(map[string]struct{})

	for _, rule := range rules {
		var matching []zfs.Snapshot
		for _, s := range snapshots {
			if rule.Matches(s) {
				matching = append(matching, s)
			}
		}

		var candidates []zfs.Snapshot
		switch {
		case rule.Keep == 0:
			candidates = matching
		case len(matching) <= rule.Keep:
			// nothing to delete
		default:
			// keep the newest N, delete the rest
			candidates = matching[:len(matching)-rule.Keep]
		}

		for _, snap := range candidates {
			if _, dup := seen[snap.FullName()]; !dup {
				toDelete = append(toDelete, snap)
				seen[snap.FullName()] = struct{}{}
			}
		}
	}

	return toDelete
}
