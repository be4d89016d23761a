// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enml

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/enwiki/pkg/types"
)

// ErrNotImage reports that a fetched or embedded resource carries a
// non-image content type.
var ErrNotImage = errors.New("resource is not an image")

// ImageFetcher retrieves an external image and returns it as an attachment.
// The transformer treats any error as "degrade to an external reference";
// fetch failures never abort a note's conversion.
type ImageFetcher interface {
	FetchImage(rawURL string) (*types.Attachment, error)
}

// HTTPImageFetcher downloads images over HTTP with a bounded timeout.
type HTTPImageFetcher struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPImageFetcher returns a fetcher with the given per-request timeout.
// A zero timeout defaults to 10 seconds.
func NewHTTPImageFetcher(timeout time.Duration, userAgent string) *HTTPImageFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPImageFetcher{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: userAgent,
	}
}

// unsafeFilenameChars matches characters stripped from URL-derived filenames.
var unsafeFilenameChars = regexp.MustCompile(`[^\w\-.]`)

// FetchImage downloads rawURL and returns it as an image attachment. Non-200
// responses and non-image content types are errors.
func (f *HTTPImageFetcher) FetchImage(rawURL string) (*types.Attachment, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrNotImage
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading image body: %w", err)
	}

	sum := md5.Sum(data)
	hash := hex.EncodeToString(sum[:])

	return &types.Attachment{
		Filename: filenameFromURL(rawURL, hash, contentType),
		MIMEType: contentType,
		Data:     data,
		Hash:     hash,
	}, nil
}

// filenameFromURL derives a filename from the URL path, falling back to the
// content hash, and ensures an image extension matching the content type.
func filenameFromURL(rawURL, hash, contentType string) string {
	filename := ""
	if u, err := url.Parse(rawURL); err == nil {
		if path := u.Path; strings.Contains(path, "/") {
			filename = path[strings.LastIndex(path, "/")+1:]
			filename = unsafeFilenameChars.ReplaceAllString(filename, "_")
		}
	}
	if filename == "" {
		filename = hash
	}

	expected := types.ExtensionForMIME(contentType)
	if expected == "" {
		expected = ".png"
	}
	if !strings.HasSuffix(strings.ToLower(filename), expected) && !hasImageExtension(filename) {
		filename += expected
	}
	return filename
}

func hasImageExtension(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".bmp"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// decodeDataURI decodes an inline base64 data URI into an image attachment.
// Non-image MIME types and malformed URIs return an error.
func decodeDataURI(dataURI string) (*types.Attachment, error) {
	if !strings.HasPrefix(dataURI, "data:") {
		return nil, errors.New("not a data URI")
	}

	header, payload, ok := strings.Cut(dataURI, ",")
	if !ok {
		return nil, errors.New("malformed data URI")
	}

	mimeType := strings.TrimPrefix(header, "data:")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, ErrNotImage
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding data URI payload: %w", err)
	}

	sum := md5.Sum(data)
	hash := hex.EncodeToString(sum[:])

	ext := types.ExtensionForMIME(mimeType)
	if ext == "" {
		ext = ".png"
	}

	return &types.Attachment{
		Filename: "embedded_" + hash[:8] + ext,
		MIMEType: mimeType,
		Data:     data,
		Hash:     hash,
	}, nil
}
