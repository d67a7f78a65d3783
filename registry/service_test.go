package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"component-registry/contentstore"
	"component-registry/contentstore/memorystore"
	"component-registry/embedding/static"
	"component-registry/orm"
	"component-registry/vector"
	"component-registry/vector/memoryindex"
	"component-registry/version"
)

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model offline")
}

type testFixture struct {
	service *Service
	index   *fakeIndex
	content *contentstore.Store
	vectors *memoryindex.Index
}

func newTestService() *testFixture {
	index := newFakeIndex()
	content := contentstore.New(memorystore.New())
	vectors := memoryindex.New()

	return &testFixture{
		service: New(content, index, vectors, static.New(16)),
		index:   index,
		content: content,
		vectors: vectors,
	}
}

func codeFileInput(name, description string, content []byte) CreateInput {
	return CreateInput{
		CanonicalName: name,
		Type:          contentstore.ComponentType{Kind: contentstore.KindCodeFile, FileType: "js"},
		Description:   description,
		Content:       content,
		MimeType:      "text/javascript",
		Creator:       "tester",
	}
}

func TestCreateStoresDraftAndIndexes(t *testing.T) {
	t.Parallel()

	f := newTestService()
	ctx := context.Background()
	content := []byte("<toggle-switch checked></toggle-switch>")

	manifest, err := f.service.Create(ctx, codeFileInput("toggle-switch", "a toggle", content))
	require.NoError(t, err)
	assert.True(t, manifest.IsDraft())

	// stored bytes come back unchanged
	got, err := f.service.GetContent(ctx, manifest.ComponentID)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	comp, err := f.index.GetComponent(ctx, manifest.ComponentID)
	require.NoError(t, err)
	assert.Equal(t, orm.StatusDraft, comp.Status)
	assert.True(t, comp.HasDraft)
	assert.Equal(t, 0, comp.LatestVersion)

	// before first publish, latest points at the component itself
	id, err := f.service.Resolve(ctx, "toggle-switch")
	require.NoError(t, err)
	assert.Equal(t, manifest.ComponentID, id)
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	f := newTestService()
	ctx := context.Background()

	_, err := f.service.Create(ctx, CreateInput{Content: []byte("x")})
	assert.True(t, IsKind(err, KindValidation))

	_, err = f.service.Create(ctx, codeFileInput("x", "", nil))
	assert.True(t, IsKind(err, KindValidation))

	badType := codeFileInput("x", "", []byte("y"))
	badType.Type.MediaType = "image/png"
	_, err = f.service.Create(ctx, badType)
	assert.True(t, IsKind(err, KindValidation))
}

func TestPublishLifecycle(t *testing.T) {
	t.Parallel()

	f := newTestService()
	ctx := context.Background()

	created, err := f.service.Create(ctx, codeFileInput("toggle-switch", "a toggle", []byte("v1 body")))
	require.NoError(t, err)
	compID := created.ComponentID

	v1, err := f.service.Publish(ctx, compID, version.BumpMinor)
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)
	// first publish is always 1.0.0 regardless of the requested bump
	assert.Equal(t, "1.0.0", v1.Semver)
	assert.Empty(t, v1.ParentVersionID)

	comp, err := f.index.GetComponent(ctx, compID)
	require.NoError(t, err)
	assert.Equal(t, orm.StatusPublished, comp.Status)
	assert.Equal(t, 1, comp.LatestVersion)
	assert.False(t, comp.HasDraft)

	// draft slot is cleared after publish
	_, err = f.content.DraftContent(ctx, compID)
	assert.ErrorIs(t, err, contentstore.ErrNotFound)

	// latest now points at the version
	id, err := f.service.Resolve(ctx, "toggle-switch@latest")
	require.NoError(t, err)
	assert.Equal(t, v1.ID, id)

	// new draft on a clean published component starts from v1
	_, err = f.service.UpdateDraft(ctx, compID, UpdateDraftInput{Content: []byte("v2 body")})
	require.NoError(t, err)

	v2, err := f.service.Publish(ctx, compID, version.BumpMinor)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, "1.1.0", v2.Semver)
	assert.Equal(t, v1.ID, v2.ParentVersionID)

	// version content is immutable and retrievable by version id
	body, err := f.service.GetContent(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1 body"), body)

	// component id now reads through to v2
	latest, err := f.service.Get(ctx, compID)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, latest.ID)

	// the vector record is keyed by component id and reflects the latest publish
	records, err := f.vectors.Fetch(ctx, []string{compID})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].Metadata["latest_version"])

	chain, err := f.service.VersionChain(ctx, "toggle-switch")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, v1.ID, chain[0].ID)
	assert.Equal(t, v2.ID, chain[1].ID)
}

func TestResolvePrecedence(t *testing.T) {
	t.Parallel()

	f := newTestService()
	ctx := context.Background()

	created, err := f.service.Create(ctx, codeFileInput("nav-bar", "a nav", []byte("v1")))
	require.NoError(t, err)
	compID := created.ComponentID

	v1, err := f.service.Publish(ctx, compID, version.BumpPatch)
	require.NoError(t, err)
	_, err = f.service.UpdateDraft(ctx, compID, UpdateDraftInput{Content: []byte("v2")})
	require.NoError(t, err)
	v2, err := f.service.Publish(ctx, compID, version.BumpMajor)
	require.NoError(t, err)
	require.Equal(t, "2.0.0", v2.Semver)

	require.NoError(t, f.service.SetRef(ctx, "nav-bar", "stable", v1.ID))

	refs, err := f.service.ListRefs(ctx, "nav-bar")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "latest", refs[0].RefName)
	assert.Equal(t, "stable", refs[1].RefName)

	tests := []struct {
		name      string
		reference string
		expected  string
	}{
		{"exact version id", v1.ID, v1.ID},
		{"exact component id", compID, compID},
		{"bare name is latest", "nav-bar", v2.ID},
		{"named ref", "nav-bar@stable", v1.ID},
		{"range picks highest match", "nav-bar@^1.0.0", v1.ID},
		{"wide range", "nav-bar@>=1.0.0", v2.ID},
		{"exact semver", "nav-bar@2.0.0", v2.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.service.Resolve(ctx, tt.reference)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err = f.service.Resolve(ctx, "nav-bar@^9.0.0")
	assert.True(t, IsKind(err, KindNotFound))
	_, err = f.service.Resolve(ctx, "unknown-name@latest")
	assert.True(t, IsKind(err, KindNotFound))
}

func TestPublishRequiresDraft(t *testing.T) {
	t.Parallel()

	f := newTestService()
	ctx := context.Background()

	created, err := f.service.Create(ctx, codeFileInput("nav-bar", "", []byte("v1")))
	require.NoError(t, err)
	_, err = f.service.Publish(ctx, created.ComponentID, version.BumpPatch)
	require.NoError(t, err)

	_, err = f.service.Publish(ctx, created.ComponentID, version.BumpPatch)
	assert.True(t, IsKind(err, KindDraftRequired))
}

func TestPublishVersionCollision(t *testing.T) {
	t.Parallel()

	f := newTestService()
	ctx := context.Background()

	created, err := f.service.Create(ctx, codeFileInput("nav-bar", "", []byte("v1")))
	require.NoError(t, err)
	compID := created.ComponentID

	// simulate a racing publish that already claimed version 1
	require.NoError(t, f.index.UpsertVersion(ctx, &orm.Version{
		ID:          version.VersionID(compID, 1),
		ComponentID: compID,
		Version:     1,
		Semver:      "1.0.0",
	}))

	_, err = f.service.Publish(ctx, compID, version.BumpPatch)
	assert.True(t, IsKind(err, KindVersionCollision))
}

func TestPublishEmbeddingFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	index := newFakeIndex()
	content := contentstore.New(memorystore.New())
	vectors := memoryindex.New()
	service := New(content, index, vectors, failingEmbedder{})
	ctx := context.Background()

	created, err := service.Create(ctx, codeFileInput("nav-bar", "", []byte("v1")))
	require.NoError(t, err)

	v1, err := service.Publish(ctx, created.ComponentID, version.BumpPatch)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v1.Semver)

	// the vector record is simply missing until a later reindex
	assert.Equal(t, 0, vectors.Count())
}

func TestPublishPartialFailureStillCommitsContent(t *testing.T) {
	t.Parallel()

	f := newTestService()
	ctx := context.Background()

	created, err := f.service.Create(ctx, codeFileInput("nav-bar", "", []byte("v1")))
	require.NoError(t, err)
	compID := created.ComponentID

	f.index.failWith("SetRef", errors.New("db gone"))

	manifest, err := f.service.Publish(ctx, compID, version.BumpPatch)
	assert.True(t, IsKind(err, KindPartialFailure))
	require.NotNil(t, manifest)

	// the content store committed regardless
	body, err := f.content.VersionContent(ctx, compID, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), body)
}

func TestUpdateDraftCopiesPublishedStateForward(t *testing.T) {
	t.Parallel()

	f := newTestService()
	ctx := context.Background()

	created, err := f.service.Create(ctx, codeFileInput("nav-bar", "original", []byte("v1")))
	require.NoError(t, err)
	compID := created.ComponentID
	_, err = f.service.Publish(ctx, compID, version.BumpPatch)
	require.NoError(t, err)

	draft, err := f.service.UpdateDraft(ctx, compID, UpdateDraftInput{Content: []byte("wip")})
	require.NoError(t, err)

	assert.True(t, draft.IsDraft())
	assert.Equal(t, "original", draft.Description)
	assert.Equal(t, "nav-bar", draft.CanonicalName)

	comp, err := f.index.GetComponent(ctx, compID)
	require.NoError(t, err)
	assert.True(t, comp.HasDraft)
	assert.Equal(t, orm.StatusPublished, comp.Status)
	assert.Equal(t, 1, comp.LatestVersion)

	// the published version is untouched
	body, err := f.content.VersionContent(ctx, compID, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), body)
}

func TestDeleteRemovesEverywhere(t *testing.T) {
	t.Parallel()

	f := newTestService()
	ctx := context.Background()

	created, err := f.service.Create(ctx, codeFileInput("nav-bar", "", []byte("v1")))
	require.NoError(t, err)
	compID := created.ComponentID
	_, err = f.service.Publish(ctx, compID, version.BumpPatch)
	require.NoError(t, err)

	report, err := f.service.Delete(ctx, compID)
	require.NoError(t, err)
	assert.True(t, report.ContentComplete)
	assert.True(t, report.IndexDeleted)
	assert.True(t, report.VectorDeleted)
	assert.NotEmpty(t, report.DeletedObjects)

	_, err = f.service.Get(ctx, compID)
	assert.True(t, IsKind(err, KindNotFound))
	assert.Equal(t, 0, f.vectors.Count())
	_, err = f.index.GetRef(ctx, "nav-bar", "latest")
	assert.Error(t, err)
}

func TestSearch(t *testing.T) {
	t.Parallel()

	f := newTestService()
	ctx := context.Background()

	toggle, err := f.service.Create(ctx, codeFileInput(
		"toggle-switch", "an animated toggle switch control", []byte("toggle switch body"),
	))
	require.NoError(t, err)
	_, err = f.service.Publish(ctx, toggle.ComponentID, version.BumpPatch)
	require.NoError(t, err)

	table, err := f.service.Create(ctx, codeFileInput(
		"data-table", "a sortable data table grid", []byte("data table body"),
	))
	require.NoError(t, err)
	_, err = f.service.Publish(ctx, table.ComponentID, version.BumpPatch)
	require.NoError(t, err)

	matches, err := f.service.Search(ctx, SearchInput{Query: "animated toggle switch control"})
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, toggle.ComponentID, matches[0].ID)

	// kind filter excludes everything that is not a media asset
	matches, err = f.service.Search(ctx, SearchInput{
		Query:  "toggle",
		Filter: vector.Filter{Kind: string(contentstore.KindMediaAsset)},
	})
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = f.service.Search(ctx, SearchInput{})
	assert.True(t, IsKind(err, KindValidation))
}

func TestSearchEmbedderDown(t *testing.T) {
	t.Parallel()

	service := New(contentstore.New(memorystore.New()), newFakeIndex(), memoryindex.New(), failingEmbedder{})

	_, err := service.Search(context.Background(), SearchInput{Query: "anything"})
	assert.True(t, IsKind(err, KindEmbeddingUnavailable))
}

func TestReindexRebuildsDerivedStores(t *testing.T) {
	t.Parallel()

	f := newTestService()
	ctx := context.Background()

	created, err := f.service.Create(ctx, codeFileInput("nav-bar", "a nav", []byte("v1")))
	require.NoError(t, err)
	compID := created.ComponentID
	v1, err := f.service.Publish(ctx, compID, version.BumpPatch)
	require.NoError(t, err)
	_, err = f.service.UpdateDraft(ctx, compID, UpdateDraftInput{Content: []byte("v2")})
	require.NoError(t, err)
	v2, err := f.service.Publish(ctx, compID, version.BumpMinor)
	require.NoError(t, err)

	// lose both derived stores
	rebuilt := newFakeIndex()
	vectors := memoryindex.New()
	service := New(f.content, rebuilt, vectors, static.New(16))

	cursor := ""
	for {
		report, err := service.Reindex(ctx, cursor, 2)
		require.NoError(t, err)
		assert.Empty(t, report.Errors)
		if !report.Truncated {
			break
		}
		cursor = report.NextCursor
	}

	comp, err := rebuilt.GetComponent(ctx, compID)
	require.NoError(t, err)
	assert.Equal(t, orm.StatusPublished, comp.Status)
	assert.Equal(t, 2, comp.LatestVersion)
	assert.Equal(t, "nav-bar", comp.CanonicalName)

	versions, err := rebuilt.ListVersionsByComponent(ctx, compID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, v1.ID, versions[0].ID)
	assert.Equal(t, v2.ID, versions[1].ID)

	ref, err := rebuilt.GetRef(ctx, "nav-bar", "latest")
	require.NoError(t, err)
	assert.Equal(t, v2.ID, ref.ArtifactID)

	assert.Equal(t, 1, vectors.Count())

	// re-running over a live index changes nothing
	report, err := service.Reindex(ctx, "", 100)
	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	again, err := rebuilt.ListVersionsByComponent(ctx, compID)
	require.NoError(t, err)
	assert.Len(t, again, 2)
}

func TestCleanupExpiredDrafts(t *testing.T) {
	t.Parallel()

	f := newTestService()
	ctx := context.Background()

	// never-published component with a stale draft: deleted outright
	stale, err := f.service.Create(ctx, codeFileInput("stale-draft", "", []byte("x")))
	require.NoError(t, err)

	// published component with a stale draft: draft discarded, versions kept
	published, err := f.service.Create(ctx, codeFileInput("kept-component", "", []byte("v1")))
	require.NoError(t, err)
	_, err = f.service.Publish(ctx, published.ComponentID, version.BumpPatch)
	require.NoError(t, err)
	_, err = f.service.UpdateDraft(ctx, published.ComponentID, UpdateDraftInput{Content: []byte("wip")})
	require.NoError(t, err)

	// fresh draft: untouched
	fresh, err := f.service.Create(ctx, codeFileInput("fresh-draft", "", []byte("x")))
	require.NoError(t, err)

	backdate := func(id string) {
		f.index.mu.Lock()
		c := f.index.components[id]
		c.UpdatedAt = time.Now().UTC().Add(-48 * time.Hour)
		f.index.components[id] = c
		f.index.mu.Unlock()
	}
	backdate(stale.ComponentID)
	backdate(published.ComponentID)

	report, err := f.service.CleanupExpiredDrafts(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.ComponentsDeleted)
	assert.Equal(t, 1, report.DraftsDiscarded)

	_, err = f.service.Get(ctx, stale.ComponentID)
	assert.True(t, IsKind(err, KindNotFound))

	comp, err := f.index.GetComponent(ctx, published.ComponentID)
	require.NoError(t, err)
	assert.False(t, comp.HasDraft)
	body, err := f.service.GetContent(ctx, published.ComponentID)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), body)

	freshComp, err := f.index.GetComponent(ctx, fresh.ComponentID)
	require.NoError(t, err)
	assert.True(t, freshComp.HasDraft)
}
