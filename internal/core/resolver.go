package core

import (
	"bytes"
	"sort"
)

// Resolve groups valid items by logical name within each kind and applies
// the first-source-wins policy: the item from the earliest-enumerated
// plugin claims the name, every other claimant becomes a loser in a
// recorded Collision. Items must be in global enumeration order.
//
// Byte-identical duplicates are still reported: the manifest is an audit
// artifact, and two plugins shipping the same name is a situation the
// operator has to resolve before the copies drift apart.
func Resolve(items []*ContentItem) map[Kind]*ResolvedSet {
	sets := make(map[Kind]*ResolvedSet, len(Kinds()))
	for _, kind := range Kinds() {
		sets[kind] = &ResolvedSet{
			Kind:  kind,
			Items: make(map[string]*ContentItem),
		}
	}

	groups := make(map[Kind]map[string][]*ContentItem)
	order := make(map[Kind][]string)
	for _, item := range items {
		if !item.IsValid() {
			continue
		}
		byName := groups[item.Kind]
		if byName == nil {
			byName = make(map[string][]*ContentItem)
			groups[item.Kind] = byName
		}
		if _, seen := byName[item.Name]; !seen {
			order[item.Kind] = append(order[item.Kind], item.Name)
		}
		byName[item.Name] = append(byName[item.Name], item)
	}

	for kind, set := range sets {
		for _, name := range order[kind] {
			group := groups[kind][name]
			winner := group[0]
			set.Items[name] = winner
			set.Names = append(set.Names, name)

			if len(group) > 1 {
				set.Collisions = append(set.Collisions, Collision{
					Kind:      kind,
					Name:      name,
					Winner:    winner,
					Losers:    group[1:],
					Identical: allIdentical(winner, group[1:]),
				})
			}
		}
		sort.Strings(set.Names)
	}

	return sets
}

// allIdentical reports whether every loser carries the same bytes as the
// winner.
func allIdentical(winner *ContentItem, losers []*ContentItem) bool {
	for _, l := range losers {
		if !bytes.Equal(winner.RawBytes, l.RawBytes) {
			return false
		}
	}
	return true
}
