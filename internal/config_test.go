package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/fs"
)

func Test_LoadConfig_AppliesDefaults(t *testing.T) {
	dir := fs.NewDir(t, "reel-config", fs.WithFile("config.yaml", `
database:
  username: reel
  password: secret
importer:
  matching:
    extract_scene_studios_from_filepath: false
ingest:
  paths:
    - /srv/videos/../library
`))
	defer dir.Remove()

	config, err := LoadConfig(dir.Join("config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "reel", config.Database.User)
	assert.Equal(t, "5432", config.Database.Port)

	assert.True(t, config.Importer.Matching.ExtractSceneActorsFromFilepath)
	assert.True(t, config.Importer.Matching.ExtractSceneLabelsFromFilepath)
	assert.True(t, config.Importer.Matching.ExtractSceneMoviesFromFilepath)
	assert.False(t, config.Importer.Matching.ExtractSceneStudiosFromFilepath)
	assert.Equal(t, 4, config.Importer.Parallelism)

	assert.Equal(t, []string{"/srv/library"}, config.Ingest.IngestPaths)
	assert.Equal(t, 300, config.Ingest.ForceSyncSeconds)
	assert.Equal(t, "info", config.LogLevel)
}

func Test_LoadConfig_RequiresDatabaseCredentials(t *testing.T) {
	dir := fs.NewDir(t, "reel-config", fs.WithFile("config.yaml", "log_level: debug\n"))
	defer dir.Remove()

	_, err := LoadConfig(dir.Join("config.yaml"))
	assert.Error(t, err)
}
