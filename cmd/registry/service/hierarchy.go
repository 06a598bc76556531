package service

import (
	"fmt"
	"slices"
	"sort"

	"github.com/maruel/natural"

	"github.com/opendataplatform/registry/common/models"
)

// BuildHierarchy computes the root-to-self path of every keyword reachable
// from a root. It extends paths one generation per pass until a pass adds
// nothing. A parent in another vocabulary does not link. Keywords whose
// parent chain never reaches a root form a cycle and are reported as an error.
//
// The result is ordered by vocabulary, then by key path in natural order.
func BuildHierarchy(keywords []*models.Keyword) ([]*models.KeywordHierarchy, error) {
	resolved := make(map[int]*models.KeywordHierarchy, len(keywords))

	var frontier []*models.KeywordHierarchy
	for _, kw := range keywords {
		if kw.ParentID == nil {
			row := &models.KeywordHierarchy{Keyword: *kw, IDs: []int{kw.ID}, Keys: []string{kw.Key}}
			resolved[kw.ID] = row
			frontier = append(frontier, row)
		}
	}

	byID := make(map[int]*models.Keyword, len(keywords))
	for _, kw := range keywords {
		byID[kw.ID] = kw
	}

	maxPasses := len(keywords) + 1
	for pass := 0; len(frontier) > 0; pass++ {
		if pass > maxPasses {
			return nil, fmt.Errorf("keyword hierarchy did not converge after %d passes", maxPasses)
		}

		parents := make(map[int]*models.KeywordHierarchy, len(frontier))
		for _, row := range frontier {
			parents[row.ID] = row
		}

		var next []*models.KeywordHierarchy
		for _, kw := range keywords {
			if kw.ParentID == nil {
				continue
			}
			parent, ok := parents[*kw.ParentID]
			if !ok || parent.VocabularyID != kw.VocabularyID {
				continue
			}
			row := &models.KeywordHierarchy{
				Keyword: *kw,
				IDs:     append(slices.Clone(parent.IDs), kw.ID),
				Keys:    append(slices.Clone(parent.Keys), kw.Key),
			}
			resolved[kw.ID] = row
			next = append(next, row)
		}
		frontier = next
	}

	for _, kw := range keywords {
		if _, ok := resolved[kw.ID]; ok || kw.ParentID == nil {
			continue
		}
		if inCycle(kw, byID) {
			return nil, fmt.Errorf("keyword %d (%s/%s) is part of a parent cycle", kw.ID, kw.VocabularyID, kw.Key)
		}
	}

	rows := make([]*models.KeywordHierarchy, 0, len(resolved))
	for _, row := range resolved {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return hierarchyLess(rows[i], rows[j]) })
	return rows, nil
}

// inCycle follows parent links from kw within its vocabulary
func inCycle(kw *models.Keyword, byID map[int]*models.Keyword) bool {
	seen := map[int]bool{kw.ID: true}
	for cur := kw; cur.ParentID != nil; {
		parent, ok := byID[*cur.ParentID]
		if !ok || parent.VocabularyID != kw.VocabularyID {
			return false
		}
		if seen[parent.ID] {
			return true
		}
		seen[parent.ID] = true
		cur = parent
	}
	return false
}

func hierarchyLess(a, b *models.KeywordHierarchy) bool {
	if a.VocabularyID != b.VocabularyID {
		return a.VocabularyID < b.VocabularyID
	}
	for i := 0; i < len(a.Keys) && i < len(b.Keys); i++ {
		if a.Keys[i] != b.Keys[i] {
			return natural.Less(a.Keys[i], b.Keys[i])
		}
	}
	return len(a.Keys) < len(b.Keys)
}
