package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Embedded(t *testing.T) {
	templates, err := Load("")
	require.NoError(t, err)

	assert.NotEmpty(t, templates.WarmupChannels)
	assert.NotEmpty(t, templates.BadPhrases)
	assert.NotEmpty(t, templates.ReactionSet("default"))
	assert.NotEmpty(t, templates.ReactionSet("extended"))
}

func TestReactionSet_FallsBack(t *testing.T) {
	templates, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, templates.Reactions["default"], templates.ReactionSet("nonexistent"))
}

func TestPhrasesFor_AllStrategies(t *testing.T) {
	templates, err := Load("")
	require.NoError(t, err)

	for _, strategy := range []string{"observer", "expert", "support", "trendsetter", "community"} {
		assert.NotEmpty(t, templates.PhrasesFor(strategy), strategy)
	}
	assert.Equal(t, templates.Phrases["observer"], templates.PhrasesFor("unknown"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}
