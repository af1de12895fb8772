package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripTags(t *testing.T) {
	assert.Equal(t, "Hello world", StripTags("<b>Hello</b> <script>alert(1)</script>world"))
	assert.Equal(t, "Tom & Jerry", StripTags("Tom &amp; Jerry"))
	assert.Equal(t, []string{"A", "B"}, StripTagsSlice([]string{"<i>A</i>", " B "}))
}

func TestSanitizeRich(t *testing.T) {
	out := SanitizeRich(`<p onclick="x()">Hi <a href="https://example.com">link</a></p>`)
	assert.NotContains(t, out, "onclick")
	assert.Contains(t, out, "nofollow")
	assert.Contains(t, out, "<p>")
}
