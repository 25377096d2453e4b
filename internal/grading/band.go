package grading

import "fmt"

// MaxBand is the top of the band scale.
const MaxBand = 9.0

type bandStep struct {
	min  float64
	band float64
}

// bandTable is checked top-down; the first inclusive lower bound that the percentage
// reaches wins. The steps are uneven and must stay exactly as listed.
var bandTable = []bandStep{
	{89, 9.0},
	{82, 8.5},
	{75, 8.0},
	{68, 7.5},
	{61, 7.0},
	{54, 6.5},
	{47, 6.0},
	{40, 5.5},
	{33, 5.0},
	{26, 4.5},
	{19, 4.0},
	{12, 3.5},
	{5, 3.0},
	{1, 2.5},
}

const minBand = 2.0

// ToBand converts a correctness percentage into a band.
func ToBand(percentage float64) float64 {
	for _, step := range bandTable {
		if percentage >= step.min {
			return step.band
		}
	}
	return minBand
}

// DefaultSkillLabel is used when an assessment does not name its skill.
const DefaultSkillLabel = "reading"

// Feedback returns qualitative text for a band.
func Feedback(band float64, skill string) string {
	if skill == "" {
		skill = DefaultSkillLabel
	}
	switch {
	case band >= 8.5:
		return fmt.Sprintf("Excellent %s skills. You handle complex texts with precision and rarely miss detail.", skill)
	case band >= 7.0:
		return fmt.Sprintf("Good %s skills. You follow most ideas accurately; work on the occasional detail you misread.", skill)
	case band >= 6.0:
		return fmt.Sprintf("Competent %s skills. You get the main ideas but lose accuracy on inference and specific detail.", skill)
	case band >= 5.0:
		return fmt.Sprintf("Modest %s skills. Practise scanning for key words and reading whole paragraphs for meaning.", skill)
	case band >= 4.0:
		return fmt.Sprintf("Limited %s skills. Build vocabulary and practise with shorter texts before timed tests.", skill)
	default:
		return fmt.Sprintf("Your %s skills need significant work. Start with graded texts and basic comprehension exercises.", skill)
	}
}
