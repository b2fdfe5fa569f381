package descriptor

import (
	"fmt"

	"github.com/nzoschke/audiodesc/pkg/infer"
)

// Locale names a label vocabulary.
type Locale string

const (
	LocaleEnglish   Locale = "en"
	LocaleBilingual Locale = "bilingual"
)

// ParseLocale accepts "en" or "bilingual". An empty string means English.
func ParseLocale(s string) (Locale, error) {
	switch Locale(s) {
	case "", LocaleEnglish:
		return LocaleEnglish, nil
	case LocaleBilingual:
		return LocaleBilingual, nil
	}
	return "", fmt.Errorf("unknown label locale %q (want en or bilingual)", s)
}

// Labels returns the vocabulary for the locale.
func (l Locale) Labels() LabelSet {
	if l == LocaleBilingual {
		return BilingualLabels()
	}
	return EnglishLabels()
}

// LabelSet maps each categorical value to its display text, indexed by the
// infer enum value.
type LabelSet struct {
	Energy       [5]string
	DynamicRange [2]string
	Texture      [3]string
	Brightness   [4]string
	Density      [3]string
	Moods        [13]string
}

// EnglishLabels is the default vocabulary.
func EnglishLabels() LabelSet {
	return LabelSet{
		Energy:       [5]string{"Low", "Medium-Low", "Medium", "Medium-High", "High"},
		DynamicRange: [2]string{"Narrow", "Wide"},
		Texture:      [3]string{"Rhythmic-dominant", "Balanced", "Melodic-dominant"},
		Brightness:   [4]string{"Dark & Warm", "Balanced", "Bright", "Very Bright"},
		Density:      [3]string{"Sparse", "Moderate", "Dense"},
		Moods: [13]string{
			"Lyrical", "Emotional", "Warm",
			"Uplifting", "Energetic",
			"Melancholic", "Dark", "Mysterious",
			"Intense", "Dramatic",
			"Melodic", "Rhythmic", "Dynamic",
		},
	}
}

// BilingualLabels pairs Korean text with the English label, the format
// downstream prompt builders were written against.
func BilingualLabels() LabelSet {
	return LabelSet{
		Energy:       [5]string{"낮음 (Low)", "중저 (Medium-Low)", "중간 (Medium)", "중고 (Medium-High)", "높음 (High)"},
		DynamicRange: [2]string{"좁음 (Narrow)", "넓음 (Wide)"},
		Texture:      [3]string{"리드미컬 (Rhythmic-dominant)", "균형 (Balanced)", "멜로딕 (Melodic-dominant)"},
		Brightness:   [4]string{"어둡고 따뜻함 (Dark & Warm)", "중간 (Balanced)", "밝음 (Bright)", "매우 밝음 (Very Bright)"},
		Density:      [3]string{"희박 (Sparse)", "중간 (Moderate)", "밀집 (Dense)"},
		Moods: [13]string{
			"서정적 (Lyrical)", "감성적 (Emotional)", "따뜻함 (Warm)",
			"밝음 (Uplifting)", "에너제틱 (Energetic)",
			"우울 (Melancholic)", "어둠 (Dark)", "신비로움 (Mysterious)",
			"강렬함 (Intense)", "드라마틱 (Dramatic)",
			"멜로딕 (Melodic)", "리드미컬 (Rhythmic)", "다이내믹 (Dynamic)",
		},
	}
}

func (ls LabelSet) moods(moods []infer.Mood) []string {
	out := make([]string, len(moods))
	for i, m := range moods {
		out[i] = ls.Moods[m]
	}
	return out
}

func genres(gs []infer.Genre) []string {
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = string(g)
	}
	return out
}
