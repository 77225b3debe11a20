package resume

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surge-downloader/surge/internal/prefetch"
	"github.com/surge-downloader/surge/internal/progress"
)

func baseInfo() prefetch.UrlInfo {
	return prefetch.UrlInfo{Size: 1000, SupportsRange: true, ETag: `"v1"`, LastModified: "Mon, 01 Jan 2024 00:00:00 GMT"}
}

func baseEntry() *ResumeEntry {
	return &ResumeEntry{
		FilePath:     "/tmp/out.bin",
		TotalSize:    1000,
		ETag:         `"v1"`,
		LastModified: "Mon, 01 Jan 2024 00:00:00 GMT",
		Progress:     progress.NewSet(progress.ByteRange{Start: 0, End: 400}),
	}
}

func TestEvaluate_NoEntry_NoResume(t *testing.T) {
	plan := Evaluate(nil, baseInfo())
	assert.False(t, plan.ShouldResume, "expected ShouldResume = false with nil entry")
}

func TestEvaluate_NotFastDownload_NoResume(t *testing.T) {
	plan := Evaluate(baseEntry(), prefetch.UrlInfo{Size: 1000, SupportsRange: false})
	assert.False(t, plan.ShouldResume, "expected ShouldResume = false when server no longer supports range")
}

func TestEvaluate_AlreadyComplete_NoResume(t *testing.T) {
	entry := baseEntry()
	entry.Progress = progress.NewSet(progress.ByteRange{Start: 0, End: 1000})
	plan := Evaluate(entry, baseInfo())
	assert.False(t, plan.ShouldResume, "expected ShouldResume = false when persisted progress already covers the whole size")
}

func TestEvaluate_CleanMatch_ProducesComplementChunks(t *testing.T) {
	plan := Evaluate(baseEntry(), baseInfo())
	require.True(t, plan.ShouldResume, "conflicts = %v", plan.Conflicts)
	assert.Equal(t, []progress.ByteRange{{Start: 400, End: 1000}}, plan.Chunks)
	assert.EqualValues(t, 400, plan.WriteProgress.Total())
}

func TestEvaluate_SizeMismatch_ConflictSizeChanged(t *testing.T) {
	info := baseInfo()
	info.Size = 2000
	plan := Evaluate(baseEntry(), info)
	require.False(t, plan.ShouldResume, "expected conflict, not resume")
	assert.Contains(t, plan.Conflicts, SizeChanged)
}

func TestEvaluate_StrongEtagMismatch_ConflictEtagChanged(t *testing.T) {
	info := baseInfo()
	info.ETag = `"v2"`
	plan := Evaluate(baseEntry(), info)
	assert.Contains(t, plan.Conflicts, EtagChanged)
}

func TestEvaluate_WeakEtag_ConflictWeakEtag(t *testing.T) {
	info := baseInfo()
	info.ETag = `W/"v1"`
	plan := Evaluate(baseEntry(), info)
	assert.Contains(t, plan.Conflicts, WeakEtag)
}

func TestEvaluate_NoEtag_ConflictNoEtag(t *testing.T) {
	info := baseInfo()
	info.ETag = ""
	plan := Evaluate(baseEntry(), info)
	assert.Contains(t, plan.Conflicts, NoEtag)
}

func TestEvaluate_LastModifiedMismatch_Conflict(t *testing.T) {
	info := baseInfo()
	info.LastModified = "Tue, 02 Jan 2024 00:00:00 GMT"
	plan := Evaluate(baseEntry(), info)
	assert.Contains(t, plan.Conflicts, LastModifiedChanged)
}

func TestEvaluate_MultipleConflicts_AllReported(t *testing.T) {
	info := baseInfo()
	info.Size = 2000
	info.ETag = `"v2"`
	plan := Evaluate(baseEntry(), info)
	assert.Contains(t, plan.Conflicts, SizeChanged)
	assert.Contains(t, plan.Conflicts, EtagChanged)
}

func TestFreshEntry_CoversWholeResource(t *testing.T) {
	entry := FreshEntry("/tmp/out.bin", "out.bin", "https://example.com/out.bin", baseInfo())
	assert.Zero(t, entry.Progress.Total(), "expected fresh entry to start with empty progress")
	assert.EqualValues(t, 1000, entry.TotalSize)
}
