// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bot

import (
	"context"
	"strings"

	"go.astrophena.name/pumpkin/internal/discourse"
)

// quoteNormalizer strips whitespace and folds the homoglyphs people use to
// sneak the trigger past pattern matching.
var quoteNormalizer = strings.NewReplacer(
	" ", "", "\n", "",
	"Ⅴ", "5", "Ⅲ", "3",
	"五", "5", "三", "3",
	"伍", "5", "叁", "3",
	"⑤", "5", "③", "3",
)

// Quote replies with the magpie blessing to posts that contain "533" (in
// any of its creative spellings) or ask for love outright.
type Quote struct{}

// Respond implements [Responder].
func (Quote) Respond(_ context.Context, post *discourse.PostDetails) (string, error) {
	raw := quoteNormalizer.Replace(post.Raw)
	if !strings.Contains(raw, "533") && !strings.Contains(raw, "我要谈恋爱") {
		return "", nil
	}
	return "鹊\n\n---\n[right]这是一条自动回复[/right]", nil
}
