package photos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/site-photos/internal/siteapi"
)

func TestIsAllowedImage(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		want        bool
	}{
		{"a.jpg", "image/jpeg", true},
		{"a.JPEG", "", true},
		{"a.heic", "application/octet-stream", true},
		{"scan.tif", "", true},
		{"photo", "image/x-custom", true},
		{"photo", "image/png; charset=binary", true},
		{"a.avif", "", true},
		{"notes.txt", "text/plain", false},
		{"archive.zip", "", false},
		{"video.mp4", "video/mp4", false},
		{"noext", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name+"_"+tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAllowedImage(tt.name, tt.contentType))
		})
	}
}

func TestStageRejectsWholeBatch(t *testing.T) {
	env := newTestEnv(t, newFakeBackend())
	s := env.session

	files := []File{jpeg("a.jpg"), jpeg("b.jpg"), &memFile{name: "notes.txt", contentType: "text/plain"}}
	err := s.Stage(t.Context(), siteapi.ClassificationBefore, files)
	require.ErrorIs(t, err, ErrUnsupportedFile)

	snap := s.Snapshot()
	assert.Empty(t, snap.StagedBefore)
	assert.Empty(t, env.previewer.created, "no preview is made for a rejected batch")

	errs := env.notifier.byLevel(LevelError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "Unsupported file")
}

func TestStageRollsBackOnPreviewFailure(t *testing.T) {
	env := newTestEnv(t, newFakeBackend())
	env.previewer.failName = "c.jpg"

	err := env.session.Stage(t.Context(), siteapi.ClassificationAfter, []File{jpeg("a.jpg"), jpeg("b.jpg"), jpeg("c.jpg")})
	require.Error(t, err)
	assert.Empty(t, env.session.Snapshot().StagedAfter)
	assert.Equal(t, []int{1, 1}, env.previewer.releaseCounts())
}

func TestStageUnstageReorder(t *testing.T) {
	env := newTestEnv(t, newFakeBackend())
	s := env.session
	ctx := t.Context()

	require.NoError(t, s.Stage(ctx, siteapi.ClassificationBefore, []File{jpeg("1.jpg"), jpeg("2.jpg"), jpeg("3.jpg")}))
	require.NoError(t, s.Stage(ctx, siteapi.ClassificationAfter, []File{jpeg("4.jpg")}))

	require.NoError(t, s.Reorder(siteapi.ClassificationBefore, 0, 1))
	assert.Equal(t, []string{"2.jpg", "1.jpg", "3.jpg"}, stagedNames(s.Snapshot().StagedBefore))

	// out of bounds in either direction is a no-op
	require.NoError(t, s.Reorder(siteapi.ClassificationBefore, 0, -1))
	require.NoError(t, s.Reorder(siteapi.ClassificationBefore, 2, 1))
	require.NoError(t, s.Reorder(siteapi.ClassificationBefore, 9, 1))
	assert.Equal(t, []string{"2.jpg", "1.jpg", "3.jpg"}, stagedNames(s.Snapshot().StagedBefore))

	require.NoError(t, s.Unstage(siteapi.ClassificationBefore, 1))
	assert.Equal(t, []string{"2.jpg", "3.jpg"}, stagedNames(s.Snapshot().StagedBefore))
	assert.Equal(t, []int{1, 0, 0, 0}, env.previewer.releaseCounts())

	require.NoError(t, s.Unstage(siteapi.ClassificationBefore, 5))
	require.NoError(t, s.Unstage(siteapi.ClassificationBefore, -1))
	assert.Equal(t, []int{1, 0, 0, 0}, env.previewer.releaseCounts())

	require.NoError(t, s.ClearStaging())
	assert.Equal(t, []int{1, 1, 1, 1}, env.previewer.releaseCounts())

	require.NoError(t, s.ClearStaging())
	require.NoError(t, s.Close())
	assert.Equal(t, []int{1, 1, 1, 1}, env.previewer.releaseCounts())
}

func TestCloseReleasesStagedPreviews(t *testing.T) {
	env := newTestEnv(t, newFakeBackend())
	require.NoError(t, env.session.Stage(t.Context(), siteapi.ClassificationBefore, []File{jpeg("1.jpg"), jpeg("2.jpg")}))

	require.NoError(t, env.session.Close())
	require.NoError(t, env.session.Close())
	assert.Equal(t, []int{1, 1}, env.previewer.releaseCounts())
}

func TestStagedPreviewLookup(t *testing.T) {
	env := newTestEnv(t, newFakeBackend())
	require.NoError(t, env.session.Stage(t.Context(), siteapi.ClassificationAfter, []File{jpeg("1.jpg")}))

	entry, ok := env.session.StagedPreview("preview-0")
	require.True(t, ok)
	assert.Equal(t, "1.jpg", entry.File.Name())

	staged := env.session.Snapshot().StagedAfter
	require.Len(t, staged, 1)
	assert.Equal(t, 640, staged[0].Width)
	assert.Equal(t, 480, staged[0].Height)

	_, ok = env.session.StagedPreview("preview-9")
	assert.False(t, ok)
}

func TestStagingWithoutPreviewer(t *testing.T) {
	st := NewStaging(nil)
	require.NoError(t, st.Stage(t.Context(), siteapi.ClassificationBefore, []File{jpeg("a.jpg"), jpeg("b.jpg")}))

	entries := st.Entries(siteapi.ClassificationBefore)
	require.Len(t, entries, 2)
	assert.NotEmpty(t, entries[0].Preview.ID())
	assert.NotEqual(t, entries[0].Preview.ID(), entries[1].Preview.ID())
	w, h := entries[0].Dimensions()
	assert.Zero(t, w)
	assert.Zero(t, h)
	require.NoError(t, st.ClearAll())
}

func stagedNames(files []StagedFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Name)
	}
	return out
}
