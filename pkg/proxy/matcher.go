// Package proxy implements the proxy-tag message routing engine: matching
// raw input text against the roster's prefix/suffix patterns to decide which
// member is speaking, and suggesting fixes when nothing matches.
package proxy

import (
	"log/slog"
	"strings"

	"github.com/pluralchat/pluralchat-server/pkg/models"
)

// Match inspects rawText against every member's proxy tags and returns the
// member it routes to plus the text with the tag decoration stripped. When no
// tag matches it returns (nil, rawText).
//
// Evaluation order is a user-visible contract: members are scanned in the
// order given (the store hands them over name-sorted) and each member's tags
// in stored order. The first tag that matches structurally and leaves a
// non-empty body wins; there is no scoring or longest-prefix preference.
func Match(rawText string, members []*models.Member) (*models.Member, string) {
	if strings.TrimSpace(rawText) == "" {
		return nil, rawText
	}

	for _, member := range members {
		tags, err := member.ParseProxyTags()
		if err != nil {
			// Unparseable tag data means the member has no tags.
			slog.Warn("skipping malformed proxy tags", "member", member.Name, "error", err)
			continue
		}
		for _, tag := range tags {
			prefix := tag.PrefixString()
			suffix := tag.SuffixString()
			if prefix == "" && suffix == "" {
				continue
			}
			if !strings.HasPrefix(rawText, prefix) || !strings.HasSuffix(rawText, suffix) {
				continue
			}
			start := len(prefix)
			end := len(rawText)
			if suffix != "" {
				end -= len(suffix)
			}
			// Prefix and suffix may overlap on short inputs.
			if start > end {
				continue
			}
			clean := strings.TrimSpace(rawText[start:end])
			if clean == "" {
				// Proxying into nothing is rejected; keep scanning.
				continue
			}
			return member, clean
		}
	}

	return nil, rawText
}
