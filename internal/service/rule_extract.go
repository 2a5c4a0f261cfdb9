package service

import (
	"regexp"
	"strconv"
	"strings"
)

var citationYearRe = regexp.MustCompile(`\b(20[2-9][0-9])[a-z]?\b`)

// extractCitationYears 提取文本中出现的引用年份（2020-2099），按出现顺序去重
func extractCitationYears(text string) []int {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil
	}
	var out []int
	seen := map[int]bool{}
	for _, m := range citationYearRe.FindAllStringSubmatch(s, -1) {
		v, err := strconv.Atoi(m[1])
		if err != nil || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func hasRecentCitation(text string) bool {
	return len(extractCitationYears(text)) > 0
}
