// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package replytag marks bot-authored replies.
//
// Every reply the bot posts gets a hidden HTML comment with a random nonce
// and a fixed marker appended. The nonce keeps two replies from ever being
// byte-identical (Discourse rejects duplicate posts), and the marker lets
// watchers recognize the bot's own posts and skip them instead of replying
// to themselves forever.
package replytag

import (
	"math/rand/v2"
	"strings"
)

// Marker is the fixed string identifying an automatic reply.
const Marker = "<!-- 来自南瓜的自动回复 -->"

const (
	alphabet    = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	nonceLength = 20
)

// Tag appends the uniqueness nonce and the auto-reply marker to body.
func Tag(body string) string {
	return body + "\n\n<!-- " + nonce() + " -->\n" + Marker
}

// IsTagged reports whether s carries the auto-reply marker.
func IsTagged(s string) bool {
	return strings.Contains(s, Marker)
}

func nonce() string {
	var sb strings.Builder
	sb.Grow(nonceLength)
	for range nonceLength {
		sb.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}
	return sb.String()
}
