package service

import (
	"regexp"
	"strings"
)

var (
	blankRunRe    = regexp.MustCompile(`\n{2,}`)
	spaceRunRe    = regexp.MustCompile(`[ \t]+`)
	blankSpacesRe = regexp.MustCompile(`\n\s+\n`)
	pageNumberRe  = regexp.MustCompile(`\n\d+\n`)
)

// CleanText 压缩空行和空白，去掉单独成行的页码
func CleanText(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	text = spaceRunRe.ReplaceAllString(text, " ")
	text = blankSpacesRe.ReplaceAllString(text, "\n\n")
	text = pageNumberRe.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}
