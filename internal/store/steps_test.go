package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/commentcrawl/internal/types"
)

func TestStepCache(t *testing.T) {
	c := &StepCache{Dir: t.TempDir()}

	_, err := c.LatestStepFile(StepCrawl)
	assert.Error(t, err)

	first := &types.Crawl{RunID: "a"}
	second := &types.Crawl{RunID: "b"}
	_, err = SaveStepOutput(c, StepCrawl, first)
	require.NoError(t, err)
	path, err := SaveStepOutput(c, StepCrawl, second)
	require.NoError(t, err)

	loaded, from, err := LoadLatestStepOutput[*types.Crawl](c, StepCrawl)
	require.NoError(t, err)
	assert.Equal(t, path, from)
	assert.Equal(t, "b", loaded.RunID)
}

func TestStepCacheText(t *testing.T) {
	c := &StepCache{Dir: t.TempDir()}

	path, err := c.SaveTextOutput(StepReport, "report body", ".txt")
	require.NoError(t, err)

	latest, err := c.LatestStepFile(StepReport)
	require.NoError(t, err)
	assert.Equal(t, path, latest)

	_, err = LoadStepOutput[*types.Crawl](path)
	assert.Error(t, err, "text output is not JSON")
}
