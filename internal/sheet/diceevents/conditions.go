package diceevents

import (
	"slices"
	"strings"
)

// Conditions is an OR of AND-sets of tags. A roll matches when every tag of
// at least one set is present. Empty conditions match every roll.
type Conditions [][]string

// Any matches rolls carrying at least one of tags.
func Any(tags ...string) Conditions {
	out := make(Conditions, 0, len(tags))
	for _, tag := range tags {
		out = append(out, []string{tag})
	}
	return out.normalize()
}

// All matches rolls carrying every one of tags.
func All(tags ...string) Conditions {
	return Conditions{tags}.normalize()
}

// Or joins AND-sets.
func Or(sets ...[]string) Conditions {
	return Conditions(sets).normalize()
}

// ParseConditions reads "a+b,c" as (a AND b) OR c.
func ParseConditions(s string) Conditions {
	var out Conditions
	for _, set := range strings.Split(s, ",") {
		var tags []string
		for _, tag := range strings.Split(set, "+") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		out = append(out, tags)
	}
	return out.normalize()
}

func (c Conditions) normalize() Conditions {
	out := make(Conditions, 0, len(c))
	for _, set := range c {
		if len(set) > 0 {
			out = append(out, slices.Clone(set))
		}
	}
	return out
}

// Match reports whether tags satisfy the conditions. Non-empty conditions
// never match an empty tag list.
func (c Conditions) Match(tags []string) bool {
	c = c.normalize()
	if len(c) == 0 {
		return true
	}
	if len(tags) == 0 {
		return false
	}
	for _, set := range c {
		all := true
		for _, tag := range set {
			if !slices.Contains(tags, tag) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// String renders the conditions in ParseConditions syntax. Equal strings
// identify the same listener for removal.
func (c Conditions) String() string {
	sets := make([]string, 0, len(c))
	for _, set := range c.normalize() {
		sets = append(sets, strings.Join(set, "+"))
	}
	return strings.Join(sets, ",")
}
