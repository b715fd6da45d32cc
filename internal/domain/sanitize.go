package domain

import "strings"

// draftReplacer strips structural markup delimiters (bold, italic,
// code, headings) so a draft always renders as plain prose. Longer
// delimiters are listed first so "**" is consumed before "*".
var draftReplacer = strings.NewReplacer(
	"***", "",
	"**", "",
	"__", "",
	"*", "",
	"`", "",
	"###", "",
	"##", "",
	"#", "",
)

// SanitizeDraft removes structural markup characters from text.
func SanitizeDraft(text string) string {
	return draftReplacer.Replace(text)
}

// SanitizeForMode applies the draft sanitizer when mode is draft and
// returns other modes' text untouched. It is applied identically to
// whole batch responses and to each streamed fragment.
func SanitizeForMode(mode Mode, text string) string {
	if mode == ModeDraft {
		return SanitizeDraft(text)
	}
	return text
}
