package domain

import "time"

// ContentKind separates the two public content collections.
type ContentKind string

const (
	ContentCaseStudy ContentKind = "case_study"
	ContentJob       ContentKind = "job"
)

// ContentStatus is the publication state of a content item.
type ContentStatus string

const (
	StatusDraft     ContentStatus = "draft"
	StatusPublished ContentStatus = "published"
)

// ContentItem is a case study or job posting shown on the site.
type ContentItem struct {
	Kind        ContentKind   `json:"kind" yaml:"kind"`
	Slug        string        `json:"slug" yaml:"slug"`
	Title       string        `json:"title" yaml:"title"`
	Summary     string        `json:"summary,omitempty" yaml:"summary"`
	Body        string        `json:"body,omitempty" yaml:"body"`
	Tags        []string      `json:"tags,omitempty" yaml:"tags"`
	Status      ContentStatus `json:"status" yaml:"status"`
	PublishedAt *time.Time    `json:"published_at,omitempty" yaml:"published_at"`
	UpdatedAt   time.Time     `json:"updated_at" yaml:"-"`
}

// IsPublished reports whether the item may be shown publicly.
func (c *ContentItem) IsPublished() bool {
	return c.Status == StatusPublished
}
