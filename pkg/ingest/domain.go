// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import "strings"

// DomainPattern is one entry of the ordered business-domain keyword table.
// Patterns are matched in the order they appear; the first tag whose
// keyword list matches path or content wins.
type DomainPattern struct {
	Tag      string
	Keywords []string
}

// DefaultDomainPatterns returns the built-in ordered keyword table. Callers
// may override this via Config.DomainPatterns.
func DefaultDomainPatterns() []DomainPattern {
	return []DomainPattern{
		{Tag: "auth", Keywords: []string{"auth", "login", "session", "token", "jwt", "oauth", "permission", "rbac"}},
		{Tag: "payments", Keywords: []string{"payment", "billing", "invoice", "stripe", "checkout", "subscription"}},
		{Tag: "finance", Keywords: []string{"ledger", "accounting", "finance", "currency", "tax"}},
		{Tag: "messaging", Keywords: []string{"queue", "kafka", "pubsub", "event", "notification", "email", "sms"}},
		{Tag: "ui", Keywords: []string{"component", "view", "page", "widget", "layout", "style", "css"}},
		{Tag: "data", Keywords: []string{"repository", "migration", "schema", "query", "database", "sql"}},
		{Tag: "infrastructure", Keywords: []string{"deploy", "helm", "terraform", "docker", "kubernetes", "ci", "pipeline"}},
		{Tag: "testing", Keywords: []string{"test", "mock", "fixture", "spec"}},
		{Tag: "documentation", Keywords: []string{"readme", "doc", "guide", "changelog"}},
	}
}

// ClassifyBusinessDomain assigns the first matching tag, searching the path
// then the lowercased content, in the configured pattern order. Returns
// "unknown" when no pattern matches. The function is deterministic: the same
// (path, content, patterns) always yields the same tag.
func ClassifyBusinessDomain(path, content string, patterns []DomainPattern) string {
	lowerPath := strings.ToLower(path)
	for _, p := range patterns {
		for _, kw := range p.Keywords {
			if strings.Contains(lowerPath, kw) {
				return p.Tag
			}
		}
	}
	lowerContent := strings.ToLower(content)
	for _, p := range patterns {
		for _, kw := range p.Keywords {
			if strings.Contains(lowerContent, kw) {
				return p.Tag
			}
		}
	}
	return "unknown"
}
