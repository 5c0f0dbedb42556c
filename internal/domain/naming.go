package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 50

var (
	slugStrip    = regexp.MustCompile(`[^a-z0-9_\s-]`)
	slugCollapse = regexp.MustCompile(`[\s_-]+`)
	lowerCaser   = cases.Lower(language.Und)
)

// Slugify turns free text into a filename-safe token: lowercase, diacritics
// folded, non-word characters removed, separators collapsed to single
// hyphens and the result capped at 50 characters.
func Slugify(text string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), text)
	if err != nil {
		folded = text
	}
	s := strings.TrimSpace(lowerCaser.String(folded))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugCollapse.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLength {
		s = s[:maxSlugLength]
	}
	return s
}

// ArtifactExt is the extension of recorder output.
const ArtifactExt = ".avi"

// MergeFilename names a merged sequence after the first clip's prompt.
func MergeFilename(prompt string) string {
	if slug := Slugify(prompt); slug != "" {
		return slug + "-cinematic-cut" + ArtifactExt
	}
	return "merged-sequence" + ArtifactExt
}

// CaptionFilename names a captioned clip; index is zero-based.
func CaptionFilename(prompt string, index int) string {
	if slug := Slugify(prompt); slug != "" {
		return fmt.Sprintf("%s-%d-edited%s", slug, index+1, ArtifactExt)
	}
	return fmt.Sprintf("ai-generated-video-%d-edited%s", index+1, ArtifactExt)
}

// ResultFilename names a raw generated video; index is zero-based.
func ResultFilename(index int) string {
	return fmt.Sprintf("veo-video-%d.mp4", index+1)
}
