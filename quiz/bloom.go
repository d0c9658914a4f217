package quiz

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"learnwithavi-server/models"
)

// Bloom taxonomy bounds. Levels outside this range never leave the package.
const (
	MinBloomLevel = 1
	MaxBloomLevel = 4
)

//go:embed bloom.yaml
var bloomYAML []byte

type bloomLevel struct {
	Level    int                 `yaml:"level"`
	Label    map[string]string   `yaml:"label"`
	Verbs    map[string][]string `yaml:"verbs"`
	Guidance map[string]string   `yaml:"guidance"`
}

type bloomFile struct {
	Levels []bloomLevel `yaml:"levels"`
}

var bloomLevels = mustLoadBloomLevels()

func mustLoadBloomLevels() map[int]bloomLevel {
	var f bloomFile
	if err := yaml.Unmarshal(bloomYAML, &f); err != nil {
		panic(fmt.Sprintf("bad embedded bloom.yaml: %v", err))
	}
	levels := make(map[int]bloomLevel, len(f.Levels))
	for _, lvl := range f.Levels {
		levels[lvl.Level] = lvl
	}
	for l := MinBloomLevel; l <= MaxBloomLevel; l++ {
		if _, ok := levels[l]; !ok {
			panic(fmt.Sprintf("embedded bloom.yaml missing level %d", l))
		}
	}
	return levels
}

// ClampBloomLevel forces a level into [MinBloomLevel, MaxBloomLevel].
func ClampBloomLevel(level int) int {
	if level < MinBloomLevel {
		return MinBloomLevel
	}
	if level > MaxBloomLevel {
		return MaxBloomLevel
	}
	return level
}

// BloomLabel returns the human label for a level in the given language,
// falling back to English when the language has no entry.
func BloomLabel(level int, language string) string {
	lvl := bloomLevels[ClampBloomLevel(level)]
	if label, ok := lvl.Label[language]; ok {
		return label
	}
	return lvl.Label[models.LanguageEnglish]
}

// BloomLevelInfos lists all levels with labels, for the levels endpoint and
// session summaries.
func BloomLevelInfos(language string) []models.BloomLevelInfo {
	infos := make([]models.BloomLevelInfo, 0, MaxBloomLevel)
	for l := MinBloomLevel; l <= MaxBloomLevel; l++ {
		infos = append(infos, models.BloomLevelInfo{Level: l, Label: BloomLabel(l, language)})
	}
	return infos
}

// bloomGuidance renders the cognitive-verb guidance block used in the
// generation prompt.
func bloomGuidance(level int, language string) string {
	lvl := bloomLevels[ClampBloomLevel(level)]
	verbs := lvl.Verbs[language]
	if len(verbs) == 0 {
		verbs = lvl.Verbs[models.LanguageEnglish]
	}
	guidance, ok := lvl.Guidance[language]
	if !ok {
		guidance = lvl.Guidance[models.LanguageEnglish]
	}
	return fmt.Sprintf("Bloom level %d (%s): %s Prefer question stems built on verbs such as: %s.",
		lvl.Level, BloomLabel(level, models.LanguageEnglish), guidance, strings.Join(verbs, ", "))
}
