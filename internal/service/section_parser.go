package service

import (
	"regexp"
	"sort"
	"strings"
)

// headingMap 标题同义词 -> 规范 section 名
var headingMap = map[string]string{
	"abstract":               SectionAbstract,
	"introduction":           SectionIntroduction,
	"background":             SectionIntroduction,
	"related work":           SectionRelatedWork,
	"literature review":      SectionRelatedWork,
	"methodology":            SectionMethodology,
	"methods":                SectionMethodology,
	"method":                 SectionMethodology,
	"materials and methods":  SectionMethodology,
	"materials & methods":    SectionMethodology,
	"approach":               SectionMethodology,
	"experimental setup":     SectionMethodology,
	"experimental settings":  SectionMethodology,
	"implementation":         SectionMethodology,
	"implementation details": SectionMethodology,
	"model architecture":     SectionMethodology,
	"system architecture":    SectionMethodology,
	"experiments":            SectionResults,
	"evaluation":             SectionResults,
	"results":                SectionResults,
	"analysis":               SectionResults,
	"discussion":             SectionConclusion,
	"discussions":            SectionConclusion,
	"findings":               SectionConclusion,
	"conclusion":             SectionConclusion,
	"conclusions":            SectionConclusion,
	"future work":            SectionConclusion,
	"limitations":            SectionConclusion,
	"acknowledgements":       "acknowledgements",
	"acknowledgments":        "acknowledgements",
	"references":             SectionReferences,
	"bibliography":           SectionReferences,
}

const (
	maxHeadingChars    = 90
	maxPrefixHeadWords = 8
	minPrefaceAbstract = 40
	maxPrefaceAbstract = 350
)

var (
	headingKeysByLen = func() []string {
		keys := make([]string, 0, len(headingMap))
		for k := range headingMap {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if len(keys[i]) != len(keys[j]) {
				return len(keys[i]) > len(keys[j])
			}
			return keys[i] < keys[j]
		})
		return keys
	}()

	headingPattern = func() *regexp.Regexp {
		quoted := make([]string, len(headingKeysByLen))
		for i, k := range headingKeysByLen {
			quoted[i] = regexp.QuoteMeta(k)
		}
		return regexp.MustCompile(`(?i)^(?:\d+(?:\.\d+)*[.)]?\s+)?(?P<header>` + strings.Join(quoted, "|") + `)\s*:?\s*$`)
	}()

	headingNumberRe = regexp.MustCompile(`^(section\s+)?(?:\d+(?:\.\d+)*|[ivxlcdm]+)[.)]?\s+`)
	trailingColonRe = regexp.MustCompile(`\s*:\s*$`)
	whitespaceRe    = regexp.MustCompile(`\s+`)

	introFallbackRe  = regexp.MustCompile(`(?is)\bintroduction\b\s*(.+?)(?:\n\s*\d+\.?\s*|\n\s*methods?\b|\n\s*related work\b|\z)`)
	methodFallbackRe = regexp.MustCompile(`(?is)\b(methodology|methods?|experimental setup|implementation)\b\s*(.+?)` +
		`(?:\n\s*\d+\.?\s*|\n\s*results?\b|\n\s*experiments?\b|\n\s*evaluation\b|\n\s*discussion\b|\n\s*conclusion\b|\z)`)
)

func normalizeHeading(line string) string {
	s := strings.ToLower(strings.TrimSpace(line))
	s = headingNumberRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&", "and")
	s = trailingColonRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// classifyHeading 判断一行是否为 section 标题，返回规范名
func classifyHeading(line string) (string, bool) {
	stripped := strings.TrimSpace(line)
	if stripped == "" || len(stripped) > maxHeadingChars {
		return "", false
	}

	normalized := normalizeHeading(stripped)
	if name, ok := headingMap[normalized]; ok {
		return name, true
	}

	// 短标题以已知标题开头（"Methods and Data"）；句子不算
	if len(strings.Fields(normalized)) <= maxPrefixHeadWords && !strings.HasSuffix(normalized, ".") {
		for _, key := range headingKeysByLen {
			if strings.HasPrefix(normalized, key+" ") {
				return headingMap[key], true
			}
		}
	}

	if m := headingPattern.FindStringSubmatch(stripped); m != nil {
		header := strings.ToLower(m[headingPattern.SubexpIndex("header")])
		if name, ok := headingMap[header]; ok {
			return name, true
		}
	}
	return "", false
}

type headingPos struct {
	line int
	name string
}

// ParseSections 按行首标题切分 section：
// 同名 section 只取第一次出现；首个标题前 40-350 词的前言在缺少 abstract 时作为 abstract；
// 一个标题都没有时返回 full_text
func ParseSections(clean string) Sections {
	lines := strings.Split(clean, "\n")

	var ordered []headingPos
	seen := map[string]bool{}
	for idx, line := range lines {
		name, ok := classifyHeading(line)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		ordered = append(ordered, headingPos{line: idx, name: name})
	}

	sections := Sections{}
	if len(ordered) == 0 {
		return Sections{SectionFullText: strings.TrimSpace(clean)}
	}

	preface := strings.TrimSpace(strings.Join(lines[:ordered[0].line], "\n"))
	if preface != "" && !seen[SectionAbstract] {
		if n := wordCount(preface); n >= minPrefaceAbstract && n <= maxPrefaceAbstract {
			sections[SectionAbstract] = preface
		}
	}

	for i, h := range ordered {
		end := len(lines)
		if i+1 < len(ordered) {
			end = ordered[i+1].line
		}
		content := strings.TrimSpace(strings.Join(lines[h.line+1:end], "\n"))
		if content != "" {
			sections[h.name] = content
		}
	}

	if _, ok := sections[SectionIntroduction]; !ok {
		if m := introFallbackRe.FindStringSubmatch(clean); m != nil {
			if s := strings.TrimSpace(m[1]); s != "" {
				sections[SectionIntroduction] = s
			}
		}
	}
	if _, ok := sections[SectionMethodology]; !ok {
		if m := methodFallbackRe.FindStringSubmatch(clean); m != nil {
			if s := strings.TrimSpace(m[2]); s != "" {
				sections[SectionMethodology] = s
			}
		}
	}

	if len(sections) == 0 {
		return Sections{SectionFullText: strings.TrimSpace(clean)}
	}
	return sections
}
