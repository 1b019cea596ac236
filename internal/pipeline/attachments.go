package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"
)

const (
	// maxTextAttachmentSize is the largest text attachment that gets
	// inlined into the prompt.
	maxTextAttachmentSize = 200 * 1024

	// maxImageAttachmentSize is the largest image forwarded to the model.
	maxImageAttachmentSize = 5 * 1024 * 1024

	attachmentFetchTimeout = 15 * time.Second
)

// textExtensions lists non text/* file extensions whose contents are still
// treated as text.
var textExtensions = map[string]bool{
	".rs":   true,
	".js":   true,
	".ts":   true,
	".json": true,
	".md":   true,
	".txt":  true,
}

// Fetcher downloads attachment payloads over HTTP.
type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a Fetcher. A nil client gets a default with a
// per-request timeout.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: attachmentFetchTimeout}
	}
	return &Fetcher{client: client}
}

// isTextAttachment reports whether the attachment's contents should be
// inlined into the prompt as a fenced block.
func isTextAttachment(a Attachment) bool {
	if strings.HasPrefix(a.ContentType, "text/") {
		return true
	}
	return textExtensions[strings.ToLower(path.Ext(a.Filename))]
}

// isImageAttachment reports whether the attachment is an image the model
// can consume.
func isImageAttachment(a Attachment) bool {
	return strings.HasPrefix(a.ContentType, "image/")
}

// ExpandAttachments appends the contents of every qualifying text
// attachment to the message content as a fenced block, and collects the
// URLs of qualifying image attachments. Oversized or unreadable text
// attachments are skipped with a log line; the message itself never fails.
func (f *Fetcher) ExpandAttachments(ctx context.Context, content string, attachments []Attachment) (string, []string) {
	var images []string
	var b strings.Builder
	b.WriteString(content)
	for _, a := range attachments {
		switch {
		case isTextAttachment(a):
			if a.Size > maxTextAttachmentSize {
				log.Printf("pipeline: skipping oversized text attachment %s (%d bytes)", a.Filename, a.Size)
				continue
			}
			body, err := f.fetch(ctx, a.URL, maxTextAttachmentSize)
			if err != nil {
				log.Printf("pipeline: fetch text attachment %s: %v", a.Filename, err)
				continue
			}
			fmt.Fprintf(&b, "\n\nAttachment %s:\n```\n%s\n```", a.Filename, string(body))
		case isImageAttachment(a):
			if a.Size > maxImageAttachmentSize {
				log.Printf("pipeline: skipping oversized image attachment %s (%d bytes)", a.Filename, a.Size)
				continue
			}
			images = append(images, a.URL)
		}
	}
	return b.String(), images
}

// InlineImages downloads each image URL and re-encodes it as a base64 data
// URL suitable for a multimodal completion part. Images that fail to
// download are skipped.
func (f *Fetcher) InlineImages(ctx context.Context, urls []string) []string {
	var out []string
	for _, u := range urls {
		data, contentType, err := f.fetchTyped(ctx, u, maxImageAttachmentSize)
		if err != nil {
			log.Printf("pipeline: fetch image %s: %v", u, err)
			continue
		}
		if contentType == "" || !strings.HasPrefix(contentType, "image/") {
			contentType = "image/png"
		}
		out = append(out, fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data)))
	}
	return out
}

func (f *Fetcher) fetch(ctx context.Context, url string, limit int64) ([]byte, error) {
	body, _, err := f.fetchTyped(ctx, url, limit)
	return body, err
}

func (f *Fetcher) fetchTyped(ctx context.Context, url string, limit int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("pipeline: build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("pipeline: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("pipeline: fetch %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("pipeline: read %s: %w", url, err)
	}
	if int64(len(body)) > limit {
		return nil, "", fmt.Errorf("pipeline: attachment %s exceeds %d bytes", url, limit)
	}
	return body, resp.Header.Get("Content-Type"), nil
}
