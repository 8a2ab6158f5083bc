package model

// Attachment is a file attached to a tracker issue.
type Attachment struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	ContentURL string `json:"content"`
	Size       int64  `json:"size"`
	MimeType   string `json:"mimeType"`
}

// SubmissionURLs are the vendor-supplied links copied from the issue into the
// bundle metadata.
type SubmissionURLs struct {
	Privacy       string `json:"privacy_url"`
	Documentation string `json:"documentation_url"`
	TermsOfUse    string `json:"terms_of_use_url"`
	Support       string `json:"support_url"`
}

// Issue is the subset of a tracker issue needed to publish its bundle.
type Issue struct {
	Key         string         `json:"key"`
	Vendor      string         `json:"vendor"`
	URLs        SubmissionURLs `json:"urls"`
	Attachments []Attachment   `json:"attachments"`
}

// MetadataEntry is one {tag, value} record in a bundle's metadata array.
type MetadataEntry struct {
	Tag   string `json:"tag"`
	Value string `json:"value"`
}

// Metadata tags, in the order they are written.
const (
	TagPrivacyURL       = "privacyUrl"
	TagDocumentationURL = "documentationUrl"
	TagTermsOfUseURL    = "termsOfUseUrl"
	TagSupportURL       = "supportUrl"
)

// Entries returns the four metadata records in their fixed order.
func (u SubmissionURLs) Entries() []MetadataEntry {
	return []MetadataEntry{
		{Tag: TagPrivacyURL, Value: u.Privacy},
		{Tag: TagDocumentationURL, Value: u.Documentation},
		{Tag: TagTermsOfUseURL, Value: u.TermsOfUse},
		{Tag: TagSupportURL, Value: u.Support},
	}
}

// Published describes a bundle after it has been moved into place.
type Published struct {
	IssueKey  string   `json:"issue_key"`
	Vendor    string   `json:"vendor"`
	ExportID  string   `json:"export_id"`
	Dir       string   `json:"dir"`
	Archive   string   `json:"archive"`
	Files     []string `json:"files"`
	SizeBytes int64    `json:"size_bytes"`
}
