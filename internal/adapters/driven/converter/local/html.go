package local

import (
	"html"
	"regexp"
	"strings"
)

var (
	titleTag          = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag       = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag           = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag            = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	navTag            = regexp.MustCompile(`(?is)<(nav|footer)[^>]*>.*?</(nav|footer)>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	headingTag        = regexp.MustCompile(`(?is)<h([1-6])[^>]*>(.*?)</h[1-6]>`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	breakTags         = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
	multiSpaces       = regexp.MustCompile(`[ \t\x{00a0}]+`)
)

// convertHTML returns the readable text of page and its <title>.
func convertHTML(page string) (text, title string) {
	if m := titleTag.FindStringSubmatch(page); len(m) > 1 {
		title = strings.TrimSpace(html.UnescapeString(allTags.ReplaceAllString(m[1], "")))
	}

	for _, re := range []*regexp.Regexp{scriptTag, styleTag, noscriptTag, headTag, svgTag, navTag, htmlComments} {
		page = re.ReplaceAllString(page, "")
	}

	page = headingTag.ReplaceAllStringFunc(page, func(h string) string {
		m := headingTag.FindStringSubmatch(h)
		inner := strings.Join(strings.Fields(allTags.ReplaceAllString(m[2], "")), " ")
		if inner == "" {
			return "\n"
		}
		return "\n\n" + strings.Repeat("#", int(m[1][0]-'0')) + " " + inner + "\n\n"
	})

	page = openBlockElements.ReplaceAllString(page, "\n")
	page = blockElements.ReplaceAllString(page, "\n")
	page = breakTags.ReplaceAllString(page, "\n")
	page = allTags.ReplaceAllString(page, "")
	page = html.UnescapeString(page)
	page = multiSpaces.ReplaceAllString(page, " ")

	// Lines are trimmed; runs of blank lines collapse to one so paragraph
	// boundaries survive for the chunker.
	var b strings.Builder
	blank := false
	for _, line := range strings.Split(page, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			blank = b.Len() > 0
			continue
		}
		if b.Len() > 0 {
			if blank {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
		}
		b.WriteString(line)
		blank = false
	}
	return b.String(), title
}
