package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendataplatform/registry/common/cache"
	"github.com/opendataplatform/registry/common/errs"
	"github.com/opendataplatform/registry/common/logger"
	"github.com/opendataplatform/registry/common/models"
)

func TestSuggestThenApprove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	data := map[string]any{"title": "Foo project"}

	kw, err := env.keywords.Suggest(ctx, alice, "Project", models.KeywordInput{Key: "foo", Data: data})
	require.NoError(t, err)
	assert.Equal(t, models.KeywordProposed, kw.Status)
	assert.Equal(t, 1, env.auditCount(t, models.StreamKeyword))

	updated, err := env.keywords.Update(ctx, alice, "Project", kw.ID, models.KeywordInput{
		Key:    "foo",
		Data:   data,
		Status: models.KeywordApproved,
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, models.KeywordApproved, updated.Status)
	assert.Equal(t, 2, env.auditCount(t, models.StreamKeyword))

	got, err := env.keywords.Get(ctx, "Project", "foo")
	require.NoError(t, err)
	assert.Equal(t, []int{kw.ID}, got.IDs)
}

func TestKeywordUpdateNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	in := models.KeywordInput{Key: "foo", Data: map[string]any{"title": "Foo"}, Status: models.KeywordApproved}

	kw, err := env.keywords.Create(ctx, alice, "Project", in)
	require.NoError(t, err)

	updated, err := env.keywords.Update(ctx, alice, "Project", kw.ID, in)
	require.NoError(t, err)
	assert.Nil(t, updated)
	assert.Equal(t, 1, env.auditCount(t, models.StreamKeyword))
}

func TestKeywordValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.keywords.Suggest(ctx, alice, "Nope", models.KeywordInput{Key: "x", Data: map[string]any{"title": "x"}})
	assert.True(t, errs.Is(err, errs.KindNotFound))

	_, err = env.keywords.Suggest(ctx, alice, "Project", models.KeywordInput{Key: "x", Data: map[string]any{"title": "x"}, ParentID: intPtr(999)})
	assert.True(t, errs.Is(err, errs.KindNotFound))

	_, err = env.keywords.Suggest(ctx, alice, "Project", models.KeywordInput{Key: "x", Data: map[string]any{}})
	require.True(t, errs.Is(err, errs.KindUnprocessable))
	detail, ok := errs.DetailOf(err).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, detail["valid"])

	_, err = env.keywords.Create(ctx, alice, "Project", models.KeywordInput{Key: "x", Data: map[string]any{"title": "x"}, Status: "bogus"})
	assert.True(t, errs.Is(err, errs.KindUnprocessable))

	_, err = env.keywords.Suggest(ctx, alice, "Project", models.KeywordInput{Key: "x", Data: map[string]any{"title": "x"}})
	require.NoError(t, err)
	_, err = env.keywords.Suggest(ctx, bob, "Project", models.KeywordInput{Key: "x", Data: map[string]any{"title": "y"}})
	assert.True(t, errs.Is(err, errs.KindConflict))

	assert.Equal(t, 1, env.auditCount(t, models.StreamKeyword))
}

func TestKeywordHierarchyAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	data := map[string]any{"title": "t"}

	a, err := env.keywords.Create(ctx, alice, "Project", models.KeywordInput{Key: "A", Data: data, Status: models.KeywordApproved})
	require.NoError(t, err)
	b, err := env.keywords.Create(ctx, alice, "Project", models.KeywordInput{Key: "B", Data: data, Status: models.KeywordApproved, ParentID: &a.ID})
	require.NoError(t, err)
	c, err := env.keywords.Create(ctx, alice, "Project", models.KeywordInput{Key: "C", Data: data, Status: models.KeywordApproved, ParentID: &b.ID})
	require.NoError(t, err)

	got, err := env.keywords.GetAny(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{a.ID, b.ID, c.ID}, got.IDs)
	assert.Equal(t, []string{"A", "B", "C"}, got.Keys)

	err = env.keywords.Delete(ctx, alice, "Project", b.ID)
	assert.True(t, errs.Is(err, errs.KindUnprocessable))
	assert.Equal(t, 3, env.auditCount(t, models.StreamKeyword))

	require.NoError(t, env.keywords.Delete(ctx, alice, "Project", c.ID))
	require.NoError(t, env.keywords.Delete(ctx, alice, "Project", b.ID))
	assert.Equal(t, 5, env.auditCount(t, models.StreamKeyword))

	_, err = env.keywords.GetAny(ctx, c.ID)
	assert.True(t, errs.Is(err, errs.KindNotFound))

	err = env.keywords.Delete(ctx, alice, "Project", c.ID)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestKeywordListDoesNotPrune(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	data := map[string]any{"title": "t"}

	parent, err := env.keywords.Suggest(ctx, alice, "Project", models.KeywordInput{Key: "parent", Data: data})
	require.NoError(t, err)
	_, err = env.keywords.Create(ctx, alice, "Project", models.KeywordInput{Key: "child", Data: data, Status: models.KeywordApproved, ParentID: &parent.ID})
	require.NoError(t, err)
	_, err = env.keywords.Create(ctx, alice, "Project", models.KeywordInput{Key: "other", Data: data, Status: models.KeywordApproved})
	require.NoError(t, err)

	approved, err := env.keywords.List(ctx, "Project", nil, false)
	require.NoError(t, err)
	var keys []string
	for _, k := range approved {
		keys = append(keys, k.Key)
	}
	assert.Equal(t, []string{"other", "child"}, keys)

	all, err := env.keywords.List(ctx, "Project", nil, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	children, err := env.keywords.List(ctx, "Project", strPtr("parent"), false)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, []string{"parent", "child"}, children[0].Keys)

	_, err = env.keywords.List(ctx, "Project", strPtr("missing"), false)
	assert.True(t, errs.Is(err, errs.KindNotFound))

	_, err = env.keywords.Get(ctx, "Project", "parent")
	assert.True(t, errs.Is(err, errs.KindNotFound))

	page, err := env.keywords.ListAll(ctx, []string{"Project"}, Page{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 2)
}

func TestKeywordUpdateRejectsCycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	data := map[string]any{"title": "t"}

	a, err := env.keywords.Create(ctx, alice, "Project", models.KeywordInput{Key: "A", Data: data, Status: models.KeywordApproved})
	require.NoError(t, err)
	b, err := env.keywords.Create(ctx, alice, "Project", models.KeywordInput{Key: "B", Data: data, Status: models.KeywordApproved, ParentID: &a.ID})
	require.NoError(t, err)

	_, err = env.keywords.Update(ctx, alice, "Project", a.ID, models.KeywordInput{Key: "A", Data: data, Status: models.KeywordApproved, ParentID: &b.ID})
	assert.True(t, errs.Is(err, errs.KindUnprocessable))
}

func TestKeywordCacheSeesWritesFromOtherInstances(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	log := logger.Discard()

	first := NewKeywordService(env.store, env.schemas, cache.NewMemoryCache(log), time.Hour, env.audit, nil, log)
	second := NewKeywordService(env.store, env.schemas, cache.NewMemoryCache(log), time.Hour, env.audit, nil, log)

	rows, err := first.List(ctx, "Project", nil, false)
	require.NoError(t, err)
	assert.Empty(t, rows)

	kw, err := second.Create(ctx, alice, "Project", models.KeywordInput{Key: "foo", Data: map[string]any{"title": "Foo"}, Status: models.KeywordApproved})
	require.NoError(t, err)

	got, err := first.Get(ctx, "Project", "foo")
	require.NoError(t, err)
	assert.Equal(t, []int{kw.ID}, got.IDs)

	_, err = second.Update(ctx, alice, "Project", kw.ID, models.KeywordInput{Key: "foo", Data: map[string]any{"title": "Foo"}, Status: models.KeywordRejected})
	require.NoError(t, err)

	_, err = first.Get(ctx, "Project", "foo")
	assert.True(t, errs.Is(err, errs.KindNotFound))
}
