package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendataplatform/registry/common/models"
)

func kw(vocab string, id int, key string, parent *int) *models.Keyword {
	return &models.Keyword{VocabularyID: vocab, ID: id, Key: key, Status: models.KeywordApproved, ParentID: parent}
}

func TestBuildHierarchyPaths(t *testing.T) {
	rows, err := BuildHierarchy([]*models.Keyword{
		kw("Project", 3, "C", intPtr(2)),
		kw("Project", 1, "A", nil),
		kw("Project", 2, "B", intPtr(1)),
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []int{1}, rows[0].IDs)
	assert.Equal(t, []int{1, 2}, rows[1].IDs)
	assert.Equal(t, []int{1, 2, 3}, rows[2].IDs)
	assert.Equal(t, []string{"A", "B", "C"}, rows[2].Keys)
}

func TestBuildHierarchyNaturalOrder(t *testing.T) {
	rows, err := BuildHierarchy([]*models.Keyword{
		kw("Project", 1, "item2", nil),
		kw("Project", 2, "item10", nil),
		kw("Project", 3, "item1", nil),
		kw("Institution", 4, "zeta", nil),
	})
	require.NoError(t, err)

	var keys []string
	for _, r := range rows {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"zeta", "item1", "item2", "item10"}, keys)
}

func TestBuildHierarchyChildrenFollowParent(t *testing.T) {
	rows, err := BuildHierarchy([]*models.Keyword{
		kw("Project", 1, "b", nil),
		kw("Project", 2, "a", nil),
		kw("Project", 3, "x", intPtr(2)),
	})
	require.NoError(t, err)

	var keys [][]string
	for _, r := range rows {
		keys = append(keys, r.Keys)
	}
	assert.Equal(t, [][]string{{"a"}, {"a", "x"}, {"b"}}, keys)
}

func TestBuildHierarchyIgnoresForeignParent(t *testing.T) {
	rows, err := BuildHierarchy([]*models.Keyword{
		kw("Project", 1, "root", nil),
		kw("Institution", 2, "orphan", intPtr(1)),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "root", rows[0].Key)
}

func TestBuildHierarchyDetectsCycle(t *testing.T) {
	_, err := BuildHierarchy([]*models.Keyword{
		kw("Project", 1, "root", nil),
		kw("Project", 2, "a", intPtr(3)),
		kw("Project", 3, "b", intPtr(2)),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parent cycle")
}
