package importer

import "github.com/hbomb79/Reel/internal/entity"

// MatchingConfig contains the feature toggles which control whether the
// importer will attempt to infer the relationships of a newly imported scene
// by matching known entity names against the scene's file path.
//
// Note that these are only consulted when the caller of Import opts in to
// matching; a caller which opts out disables matching regardless of these.
type MatchingConfig struct {
	ExtractSceneActorsFromFilepath  bool `yaml:"extract_scene_actors_from_filepath" env:"MATCHING_EXTRACT_SCENE_ACTORS"`
	ExtractSceneLabelsFromFilepath  bool `yaml:"extract_scene_labels_from_filepath" env:"MATCHING_EXTRACT_SCENE_LABELS"`
	ExtractSceneMoviesFromFilepath  bool `yaml:"extract_scene_movies_from_filepath" env:"MATCHING_EXTRACT_SCENE_MOVIES"`
	ExtractSceneStudiosFromFilepath bool `yaml:"extract_scene_studios_from_filepath" env:"MATCHING_EXTRACT_SCENE_STUDIOS"`
}

// Config is the configuration for the importer. It is copied on
// construction of the importer and never mutated afterwards.
type Config struct {
	Matching MatchingConfig `yaml:"matching"`

	// Parallelism bounds the number of concurrent imports
	// performed by ImportMany.
	Parallelism int `yaml:"parallelism" env:"IMPORT_PARALLELISM" env-default:"4"`
}

// DefaultMatchingConfig enables path extraction for every
// entity kind. Configuration loading starts from these values, so
// a flag is only disabled if the user explicitly sets it to false.
func DefaultMatchingConfig() MatchingConfig {
	return MatchingConfig{
		ExtractSceneActorsFromFilepath:  true,
		ExtractSceneLabelsFromFilepath:  true,
		ExtractSceneMoviesFromFilepath:  true,
		ExtractSceneStudiosFromFilepath: true,
	}
}

// Enabled returns whether path extraction is enabled for the given kind.
func (config MatchingConfig) Enabled(kind entity.Kind) bool {
	switch kind {
	case entity.Actor:
		return config.ExtractSceneActorsFromFilepath
	case entity.Label:
		return config.ExtractSceneLabelsFromFilepath
	case entity.Movie:
		return config.ExtractSceneMoviesFromFilepath
	case entity.Studio:
		return config.ExtractSceneStudiosFromFilepath
	default:
		return false
	}
}
