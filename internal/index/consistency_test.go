package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/embed"
	"github.com/Aman-CERP/docrag/internal/store"
)

func rebuildFixture(t *testing.T) (*RunnerResult, string) {
	t.Helper()
	cfg := testConfig(t)
	seedDocs(t, cfg)
	result, err := newTestRunner(t, cfg, nil).Rebuild(context.Background())
	require.NoError(t, err)
	return result, cfg.Paths.IndexLocation
}

func TestVerify_MatchingSnapshot(t *testing.T) {
	// Given: a freshly persisted index
	result, location := rebuildFixture(t)

	// When: verifying it against disk with a probe embedding
	check, err := Verify(context.Background(), result.Index, location, embed.NewStaticEmbedderWithDims(32))

	// Then: nothing differs
	require.NoError(t, err)
	assert.True(t, check.OK(), "%v", check.Inconsistencies)
	assert.Equal(t, result.Index.Size(), check.Checked)
}

func TestVerify_DetectsDifferentIndex(t *testing.T) {
	// Given: the snapshot of one corpus and an in-memory index of another
	_, location := rebuildFixture(t)
	other, otherLocation := rebuildFixture(t)
	seedDifferent := testConfig(t)
	writeFile(t, seedDifferent.Paths.DocumentRoot+"/x.txt", "An entirely different corpus about shipping times and invoices.")
	different, err := newTestRunner(t, seedDifferent, nil).Rebuild(context.Background())
	require.NoError(t, err)

	// When: verifying the mismatched pair
	check, err := Verify(context.Background(), different.Index, location, nil)
	require.NoError(t, err)

	// Then: the mismatch is reported
	assert.False(t, check.OK())
	require.NotEmpty(t, check.Inconsistencies)

	// And: an identical corpus built separately still verifies
	same, err := Verify(context.Background(), other.Index, otherLocation, nil)
	require.NoError(t, err)
	assert.True(t, same.OK())
}

func TestVerify_MissingSnapshot(t *testing.T) {
	result, _ := rebuildFixture(t)

	_, err := Verify(context.Background(), result.Index, t.TempDir(), nil)

	require.Error(t, err)
}

func TestQuickCheck(t *testing.T) {
	result, location := rebuildFixture(t)

	ok, err := QuickCheck(result.Index, location)
	require.NoError(t, err)
	assert.True(t, ok)

	small, err := store.Build(context.Background(), result.Index.Chunks()[:2], embed.NewStaticEmbedderWithDims(32), store.BuildOptions{})
	require.NoError(t, err)
	ok, err = QuickCheck(small, location)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyError(t *testing.T) {
	err := verifyError("/tmp/idx", &CheckResult{Inconsistencies: []Inconsistency{
		{Type: InconsistencyVector, Ordinal: 3, Details: "chunk x"},
	}})

	assert.Contains(t, err.Error(), "1 issues")
	assert.Equal(t, "vector", InconsistencyVector.String())
	assert.Equal(t, "unknown", InconsistencyType(42).String())
}
