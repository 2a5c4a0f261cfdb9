package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	raw := "Title\r\n\r\n\r\n\r\nFirst   line\t\twith  tabs\n   \nnext\n12\nafter page\n"
	assert.Equal(t, "Title\n\nFirst line with tabs\n\nnext\nafter page", CleanText(raw))
	assert.Equal(t, "", CleanText(" \n\t\r\n "))
}

func TestClassifyHeading(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"Abstract", SectionAbstract, true},
		{"1. Introduction", SectionIntroduction, true},
		{"2 Related Work", SectionRelatedWork, true},
		{"III. Materials & Methods", SectionMethodology, true},
		{"Section 4 Experiments", SectionResults, true},
		{"Methods and Data Collection", SectionMethodology, true},
		{"Conclusions:", SectionConclusion, true},
		{"REFERENCES", SectionReferences, true},
		{"Methods are described in the appendix.", "", false},
		{"Results show that our approach dominates every baseline we tried across all twelve tasks", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		name, ok := classifyHeading(tt.line)
		assert.Equal(t, tt.ok, ok, "line=%q", tt.line)
		assert.Equal(t, tt.want, name, "line=%q", tt.line)
	}
}

func TestParseSections(t *testing.T) {
	text := strings.Join([]string{
		"Abstract",
		"We study review automation.",
		"1. Introduction",
		"Peer review is slow.",
		"2. Related Work",
		"Prior systems (Lee, 2022) exist.",
		"3. Methodology",
		"We evaluate on two datasets.",
		"4. Results",
		"It works.",
		"5. Conclusion",
		"Done.",
		"References",
		"[1] Lee. 2022.",
	}, "\n")

	sections := ParseSections(text)

	assert.Equal(t, "We study review automation.", sections[SectionAbstract])
	assert.Equal(t, "Peer review is slow.", sections[SectionIntroduction])
	assert.Equal(t, "Prior systems (Lee, 2022) exist.", sections[SectionRelatedWork])
	assert.Equal(t, "We evaluate on two datasets.", sections[SectionMethodology])
	assert.Equal(t, "It works.", sections[SectionResults])
	assert.Equal(t, "Done.", sections[SectionConclusion])
	assert.Equal(t, "[1] Lee. 2022.", sections[SectionReferences])
	assert.Equal(t, []string{
		SectionAbstract, SectionIntroduction, SectionRelatedWork, SectionMethodology,
		SectionResults, SectionConclusion, SectionReferences,
	}, sections.Names())
}

func TestParseSections_FirstOccurrenceWins(t *testing.T) {
	text := "Introduction\nfirst intro\nMethods\nthe method\nIntroduction\nsecond intro"

	sections := ParseSections(text)

	// 重复标题不切分，内容并入前一个 section
	assert.Equal(t, "first intro", sections[SectionIntroduction])
	assert.Equal(t, "the method\nIntroduction\nsecond intro", sections[SectionMethodology])
}

func TestParseSections_PrefaceBecomesAbstract(t *testing.T) {
	preface := longText(50, "context")
	sections := ParseSections(preface + "\nIntroduction\nintro text")

	assert.Equal(t, preface, sections[SectionAbstract])

	short := ParseSections("A Title\nIntroduction\nintro text")
	_, ok := short[SectionAbstract]
	assert.False(t, ok)
}

func TestParseSections_NoHeadings(t *testing.T) {
	sections := ParseSections("just some prose without any structure at all")
	require.Len(t, sections, 1)
	assert.Equal(t, "just some prose without any structure at all", sections[SectionFullText])
}

func TestSectionsGet(t *testing.T) {
	var s Sections
	assert.Equal(t, "", s.Get(SectionAbstract))
	s = Sections{SectionAbstract: "a", "appendix": "x"}
	assert.Equal(t, []string{SectionAbstract, "appendix"}, s.Names())
}
