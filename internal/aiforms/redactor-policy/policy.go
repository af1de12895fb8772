// Политики очистки пользовательского текста от HTML перед сохранением.
package policy

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var StripTagsPolicy *bluemonday.Policy = bluemonday.StrictPolicy()
var UgcPolicy *bluemonday.Policy = bluemonday.UGCPolicy()

func init() {
	UgcPolicy.RequireNoFollowOnLinks(true)
	UgcPolicy.AddTargetBlankToFullyQualifiedLinks(true)
}

// StripTags удаляет любую разметку и возвращает чистый текст без экранирования сущностей.
func StripTags(s string) string {
	return strings.TrimSpace(html.UnescapeString(StripTagsPolicy.Sanitize(s)))
}

// StripTagsSlice применяет StripTags к каждому элементу.
func StripTagsSlice(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = StripTags(s)
	}
	return out
}

// SanitizeRich оставляет безопасную разметку (ссылки, списки, выделение) для описаний шаблонов.
func SanitizeRich(s string) string {
	return strings.TrimSpace(UgcPolicy.Sanitize(s))
}
