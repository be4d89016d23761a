// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "enwiki/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// WikiConfig holds connection settings for the destination XWiki instance.
type WikiConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the XWiki instance URL (e.g. "https://yourwiki.xwiki.cloud").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// WikiName is the wiki identifier within the instance (default "xwiki").
	WikiName string `json:"wiki_name" yaml:"wiki_name"`

	// Username and Password authenticate REST calls. Usually populated from
	// the credential store or environment, not the config file.
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// RateLimitDelay is the pause inserted before each write request to
	// avoid tripping the wiki's abuse protection (default 500ms).
	RateLimitDelay time.Duration `json:"rate_limit_delay" yaml:"rate_limit_delay"`

	// MaxRetries bounds retry attempts for rate-limited or 5xx responses.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ImportConfig holds settings for an import run.
type ImportConfig struct {
	// Space is the root XWiki space for imported notes (default "ImportedNotes").
	Space string `json:"space" yaml:"space"`

	// StateFile is the progress tracker's persisted state path. Empty means
	// the default file in the working directory.
	StateFile string `json:"state_file,omitempty" yaml:"state_file,omitempty"`

	// DatabasePath is the import history SQLite database path.
	DatabasePath string `json:"database_path,omitempty" yaml:"database_path,omitempty"`

	// DownloadImages controls whether externally-referenced images are
	// fetched and attached during conversion.
	DownloadImages bool `json:"download_images" yaml:"download_images"`

	// ImageTimeout bounds each external image fetch (default 10s).
	ImageTimeout time.Duration `json:"image_timeout" yaml:"image_timeout"`
}

// UploadResult reports the outcome of uploading one converted page.
type UploadResult struct {
	Success bool `json:"success"`

	// PageURL is the browsable URL of the created or updated page.
	PageURL string `json:"page_url,omitempty"`

	// Error describes the failure when Success is false.
	Error string `json:"error,omitempty"`

	// AttachmentsUploaded and AttachmentsFailed count per-attachment
	// outcomes. A page can succeed with a short attachment count.
	AttachmentsUploaded int `json:"attachments_uploaded"`
	AttachmentsFailed   int `json:"attachments_failed"`
}
