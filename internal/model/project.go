package model

import "time"

// Project is a public-consultation item picked up by the scraper.
type Project struct {
	ID          string     `json:"id" validate:"required"`
	Name        string     `json:"name" validate:"required"`
	Permalink   string     `json:"permalink"`
	State       string     `json:"state"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags,omitempty"`
	Link        string     `json:"link" validate:"required,url"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Post is the text relayed to downstream publishers for a project.
type Post struct {
	ProjectID string `json:"project_id"`
	Text      string `json:"text"`
	Link      string `json:"link"`
}

// Body renders the post text with its link appended.
func (p Post) Body() string {
	if p.Link == "" {
		return p.Text
	}
	return p.Text + " " + p.Link
}

// ProjectRecord is the last version of a project handed to the relay.
type ProjectRecord struct {
	ID        string
	Payload   []byte
	UpdatedAt time.Time
}
