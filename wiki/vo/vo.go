package vo

// PageMetadata describes a page beyond its raw content.
type PageMetadata struct {
	URL          string   `json:"url"`                  // Human-facing page URL
	LastModified string   `json:"lastModified"`         // Timestamp of the newest revision
	Namespace    int      `json:"namespace"`            // Wiki namespace number
	Length       int      `json:"length"`               // Page size in bytes
	Protection   []string `json:"protection,omitempty"` // Edit protection levels, if any
	Categories   []string `json:"categories"`           // Category names in wiki order
}

// PageDocument is a full page read. It is produced fresh on every fetch and
// never cached.
type PageDocument struct {
	ID            int          `json:"id"`                      // Wiki page ID
	Title         string       `json:"title"`                   // Canonical title in the wiki's stored casing
	Content       string       `json:"content"`                 // Page body
	ContentFormat string       `json:"contentFormat,omitempty"` // "markdown" when converted; wikitext otherwise
	Metadata      PageMetadata `json:"metadata"`
}

// WriteResult reports the outcome of a save. Status is "success" for edits
// that reached the wiki and "dry-run" for previews; failures surface as
// errors, never as a WriteResult.
type WriteResult struct {
	Status     string `json:"status"`
	Title      string `json:"title"`
	RevisionID int64  `json:"revisionId,omitempty"` // New revision, absent on no-op edits and dry runs
	URL        string `json:"url,omitempty"`
	NoChange   bool   `json:"noChange,omitempty"` // The wiki reported the edit changed nothing
	Content    string `json:"content,omitempty"`  // Dry runs echo what would have been saved
	Summary    string `json:"summary,omitempty"`
}

// SearchHit is one search result, in the wiki's relevance order.
type SearchHit struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"` // Plain text, markup stripped
}

// SearchResultSet is the shaped response of a search.
type SearchResultSet struct {
	Query   string      `json:"query"`
	Total   int         `json:"total"` // Total hits reported by the wiki, may exceed len(Results)
	Results []SearchHit `json:"results"`
}

// RevisionEntry is one entry of a page's history, most recent first.
type RevisionEntry struct {
	RevisionID  int64  `json:"revisionId"`
	Timestamp   string `json:"timestamp"`
	EditSummary string `json:"editSummary"`
	Author      string `json:"author"`
}

// PageHistory is the shaped response of a history query.
type PageHistory struct {
	Title     string          `json:"title"`
	Revisions []RevisionEntry `json:"revisions"`
}

// StatusReport is the diagnostic returned by server_status and /health.
type StatusReport struct {
	Status           string `json:"status"`
	Host             string `json:"host"`
	APIPath          string `json:"apiPath"`
	Scheme           string `json:"scheme"`
	MediaWikiVersion string `json:"mediawikiVersion,omitempty"`
	SiteName         string `json:"sitename,omitempty"`
	LoggedIn         bool   `json:"loggedIn"`
	Username         string `json:"username,omitempty"`
	Pages            int64  `json:"pages,omitempty"`
	Articles         int64  `json:"articles,omitempty"`
	Edits            int64  `json:"edits,omitempty"`
	ServerVersion    string `json:"serverVersion,omitempty"` // Set by the dispatcher
}
