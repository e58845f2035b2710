// Package techstack summarises the languages a developer writes into a
// byte-share breakdown and a coarse technology profile.
package techstack

import (
	"math"
	"sort"
)

// LanguageShare is one language's share of a developer's code.
type LanguageShare struct {
	Language string  `json:"language" yaml:"language"`
	Bytes    int64   `json:"bytes" yaml:"bytes"`
	Percent  float64 `json:"percent" yaml:"percent"`
	Repos    int     `json:"repos" yaml:"repos"`
}

// Breakdown merges per-repository language byte counts, sorted by share
// descending then by name. Empty input yields nil.
func Breakdown(perRepo []map[string]int64) []LanguageShare {
	totals := map[string]*LanguageShare{}
	var all int64
	for _, langs := range perRepo {
		for lang, n := range langs {
			s, ok := totals[lang]
			if !ok {
				s = &LanguageShare{Language: lang}
				totals[lang] = s
			}
			s.Bytes += n
			s.Repos++
			all += n
		}
	}
	if len(totals) == 0 {
		return nil
	}

	out := make([]LanguageShare, 0, len(totals))
	for _, s := range totals {
		if all > 0 {
			s.Percent = math.Round(float64(s.Bytes)/float64(all)*10000) / 100
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bytes != out[j].Bytes {
			return out[i].Bytes > out[j].Bytes
		}
		return out[i].Language < out[j].Language
	})
	return out
}

// Stack is a technology area with a 0-100 confidence.
type Stack struct {
	Name       string `json:"name" yaml:"name"`
	Confidence int    `json:"confidence" yaml:"confidence"`
}

const (
	Frontend   = "Frontend"
	Backend    = "Backend"
	Mobile     = "Mobile"
	DataSci    = "Data Science"
	AI         = "Machine Learning"
	Systems    = "Systems"
	Blockchain = "Blockchain"
	Embedded   = "Embedded"
	FullStack  = "Full Stack"
	Unknown    = "Unknown"
)

// affinity weights how strongly a language signals each area.
var affinity = map[string]map[string]float64{ //nolint:gochecknoglobals // static table
	Frontend: {
		"JavaScript": 1.0, "TypeScript": 0.95, "HTML": 0.85, "CSS": 0.85, "Vue": 0.75,
		"Svelte": 0.65, "SCSS": 0.45, "Sass": 0.45, "Less": 0.45,
	},
	Backend: {
		"Java": 0.95, "Python": 0.95, "Go": 0.85, "PHP": 0.75, "Ruby": 0.75,
		"C#": 0.75, "Kotlin": 0.55, "Scala": 0.65, "Elixir": 0.65,
	},
	Mobile: {
		"Swift": 0.95, "Kotlin": 0.95, "Java": 0.65, "Dart": 0.85, "Objective-C": 0.85,
	},
	DataSci: {
		"Python": 0.85, "R": 0.85, "Julia": 0.75, "Jupyter Notebook": 0.75, "Scala": 0.55,
	},
	AI: {
		"Python": 0.95, "C++": 0.75, "Cuda": 0.85, "Jupyter Notebook": 0.65,
	},
	Systems: {
		"C": 0.95, "C++": 0.95, "Rust": 0.85, "Assembly": 0.75, "CMake": 0.55, "Makefile": 0.45,
	},
	Blockchain: {
		"Solidity": 0.95, "Rust": 0.85, "Go": 0.75, "JavaScript": 0.65, "Python": 0.65, "C++": 0.65,
	},
	Embedded: {
		"C": 0.95, "C++": 0.85, "Rust": 0.75, "Assembly": 0.85, "Python": 0.55, "VHDL": 0.65, "Verilog": 0.65,
	},
}

const (
	relativeCutoff    = 0.25
	singleAreaCutoff  = 0.45
	minConfidence     = 50
	maxConfidenceBase = 100
)

// Classify scores each area by the weighted language shares and keeps the
// areas close to the strongest one. Frontend plus backend collapses into
// FullStack when their mean is strong enough.
func Classify(shares []LanguageShare) []Stack {
	scores := map[string]float64{}
	for area, weights := range affinity {
		for _, s := range shares {
			if w, ok := weights[s.Language]; ok {
				scores[area] += s.Percent * w
			}
		}
	}

	type scored struct {
		area  string
		score float64
	}
	var ranked []scored
	for area, v := range scores {
		if v > 0 {
			ranked = append(ranked, scored{area, v})
		}
	}
	if len(ranked) == 0 {
		return []Stack{{Name: Unknown}}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].area < ranked[j].area
	})

	top := ranked[0].score
	confidence := func(v float64) int {
		return int(math.Round(math.Min(v/top, 1) * maxConfidenceBase))
	}

	if scores[Frontend] > 0 && scores[Backend] > 0 {
		if c := confidence((scores[Frontend] + scores[Backend]) / 2); c >= minConfidence {
			return []Stack{{Name: FullStack, Confidence: c}}
		}
	}

	cutoff := top * relativeCutoff
	if len(ranked) == 1 {
		cutoff = top * singleAreaCutoff
	}
	var out []Stack
	for _, r := range ranked {
		if r.score < cutoff {
			continue
		}
		if c := confidence(r.score); c >= minConfidence {
			out = append(out, Stack{Name: r.area, Confidence: c})
		}
	}
	if len(out) == 0 {
		return []Stack{{Name: Unknown}}
	}
	return out
}
