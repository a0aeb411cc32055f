package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ugc allows the markup a rendered markdown description legitimately
// produces; everything else (scripts, event handlers, iframes) is stripped.
var ugc = bluemonday.UGCPolicy()

// Markdown sanitises user-supplied markdown/HTML text before storage.
func Markdown(s string) string {
	return strings.TrimSpace(ugc.Sanitize(s))
}
