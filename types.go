package blogsync

import "time"

// BlogEntry is one synced markdown file as stored in the blogs table.
// Optional metadata is nil when the file's header does not set it.
type BlogEntry struct {
	Slug        string    `json:"slug"`
	ContentURL  string    `json:"content_url"`
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Date        *string   `json:"date"`
	Tags        []string  `json:"tags"`
	Image       *string   `json:"image"`
	Author      *string   `json:"author"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Link is the entry's path on the public site.
func (e BlogEntry) Link() string {
	return "/blog/" + e.Slug
}

// RepoRef identifies the branch of a repository being mirrored.
type RepoRef struct {
	Owner  string
	Repo   string
	Branch string
}

// SyncResult summarises one sync pass.
type SyncResult struct {
	RunID   string `json:"run_id"`
	Synced  int    `json:"synced"`
	Deleted int    `json:"deleted"`
}

// SyncRun is a recorded sync attempt.
type SyncRun struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Synced     int        `json:"synced"`
	Deleted    int        `json:"deleted"`
	Stage      string     `json:"stage,omitempty"`
	Error      string     `json:"error,omitempty"`
}
