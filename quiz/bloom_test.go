package quiz

import (
	"strings"
	"testing"

	"learnwithavi-server/models"
)

func TestBloomLabel(t *testing.T) {
	cases := []struct {
		name     string
		level    int
		language string
		want     string
	}{
		{name: "level one english", level: 1, language: models.LanguageEnglish, want: "Recall"},
		{name: "level four english", level: 4, language: models.LanguageEnglish, want: "Analysis"},
		{name: "unknown language falls back to english", level: 2, language: "fr", want: "Understanding"},
		{name: "out of range clamps high", level: 99, language: models.LanguageEnglish, want: "Analysis"},
		{name: "out of range clamps low", level: -1, language: models.LanguageEnglish, want: "Recall"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BloomLabel(tc.level, tc.language); got != tc.want {
				t.Fatalf("BloomLabel(%d, %q) = %q, want %q", tc.level, tc.language, got, tc.want)
			}
		})
	}
}

func TestBloomLabelHebrew(t *testing.T) {
	for l := MinBloomLevel; l <= MaxBloomLevel; l++ {
		if BloomLabel(l, models.LanguageHebrew) == "" {
			t.Fatalf("missing Hebrew label for level %d", l)
		}
		if BloomLabel(l, models.LanguageHebrew) == BloomLabel(l, models.LanguageEnglish) {
			t.Fatalf("Hebrew label for level %d fell back to English", l)
		}
	}
}

func TestBloomLevelInfos(t *testing.T) {
	infos := BloomLevelInfos(models.LanguageEnglish)
	if len(infos) != MaxBloomLevel {
		t.Fatalf("got %d levels, want %d", len(infos), MaxBloomLevel)
	}
	for i, info := range infos {
		if info.Level != i+1 {
			t.Fatalf("levels out of order: index %d has level %d", i, info.Level)
		}
		if info.Label == "" {
			t.Fatalf("level %d has empty label", info.Level)
		}
	}
}

func TestBloomGuidanceMentionsVerbs(t *testing.T) {
	g := bloomGuidance(3, models.LanguageEnglish)
	if !strings.Contains(g, "apply") {
		t.Fatalf("level 3 guidance missing cognitive verbs: %q", g)
	}
	if !strings.Contains(g, "Bloom level 3") {
		t.Fatalf("guidance missing level marker: %q", g)
	}
}
