package tool_webfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/skald-dev/skald/src/agent"
	"github.com/skald-dev/skald/src/skaldagent/toolsutil"
)

// Tool name constant
const Name = "web_fetch"

const webFetchPrompt = `Fetches content from a URL and returns it in the requested format.

Usage notes:
  - The url and format arguments are required. Format is one of: text, markdown, html.
  - Use text for plain text content or API responses, markdown for content that
    should keep its formatting, and html for the raw page structure.
  - HTML pages are converted: text extraction strips scripts and styles,
    markdown conversion preserves headings, links, and emphasis.
  - Non-HTML content requested as markdown is wrapped in a fenced code block.
  - Only http and https URLs are supported. Redirects are followed, up to 10.
  - Responses are capped at 5MB. The optional timeout is in seconds (max 120,
    default 30).
  - Authentication and cookies are not supported; some sites may refuse
    automated requests.`

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 5 * 1024 * 1024

// WebFetchInput represents the parameters for web_fetch
type WebFetchInput struct {
	URL     string `json:"url" required:"true" description:"The URL to fetch content from"`
	Format  string `json:"format" required:"true" description:"The format to return the content in (text, markdown, or html)"`
	Timeout int    `json:"timeout,omitempty" description:"Optional timeout in seconds (max 120, default 30)"`
}

// WebFetchOutput represents the response from web_fetch
type WebFetchOutput struct {
	Content     string            `json:"content" description:"The fetched content in the requested format"`
	StatusCode  int               `json:"status_code" description:"HTTP status code of the response"`
	Headers     map[string]string `json:"headers,omitempty" description:"Selected HTTP headers from the response"`
	URL         string            `json:"url" description:"The final URL after any redirects"`
	ContentType string            `json:"content_type,omitempty" description:"Content-Type header from the response"`
}

// Tool returns the web_fetch tool definition using GenericTool
func Tool() (agent.Tool, error) {
	return agent.NewGenericTool(Name, webFetchPrompt, webFetchHandler)
}

func webFetchHandler(ctx context.Context, input WebFetchInput) (WebFetchOutput, error) {
	select {
	case <-ctx.Done():
		return WebFetchOutput{}, fmt.Errorf("operation cancelled")
	default:
	}

	if input.URL == "" {
		return WebFetchOutput{}, fmt.Errorf("URL parameter is required")
	}

	format := strings.ToLower(input.Format)
	if format != "text" && format != "markdown" && format != "html" {
		return WebFetchOutput{}, fmt.Errorf("format must be one of: text, markdown, html")
	}

	if !strings.HasPrefix(input.URL, "http://") && !strings.HasPrefix(input.URL, "https://") {
		return WebFetchOutput{}, fmt.Errorf("URL must start with http:// or https://")
	}

	if input.Timeout <= 0 {
		input.Timeout = 30
	} else if input.Timeout > 120 {
		input.Timeout = 120
	}

	client := &http.Client{
		Timeout: time.Duration(input.Timeout) * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", input.URL, nil)
	if err != nil {
		return WebFetchOutput{}, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", "skald/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return WebFetchOutput{}, fmt.Errorf("failed to fetch URL: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return WebFetchOutput{}, fmt.Errorf("request failed with status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return WebFetchOutput{}, fmt.Errorf("failed to read response: %v", err)
	}

	contentType := resp.Header.Get("Content-Type")

	toolsutil.GetLogger().Info("fetched web content",
		"url", input.URL,
		"status", resp.StatusCode,
		"size", len(body),
		"format", format,
	)

	return WebFetchOutput{
		Content:     renderContent(format, contentType, string(body)),
		StatusCode:  resp.StatusCode,
		Headers:     pickHeaders(resp.Header),
		URL:         resp.Request.URL.String(),
		ContentType: contentType,
	}, nil
}

// renderContent converts the raw body into the requested format. Conversion
// failures fall back to returning the content closest to what was asked for.
func renderContent(format, contentType, body string) string {
	isHTML := strings.Contains(contentType, "text/html")

	switch format {
	case "text":
		if isHTML {
			text, err := htmlToText(body)
			if err != nil {
				toolsutil.GetLogger().Warn("failed to extract text from HTML, returning raw content", "error", err)
				return body
			}
			return text
		}
		return body

	case "markdown":
		switch {
		case isHTML:
			markdown, err := htmlToMarkdown(body)
			if err != nil {
				toolsutil.GetLogger().Warn("failed to convert HTML to Markdown, wrapping in code block", "error", err)
				return "```html\n" + body + "\n```"
			}
			return markdown
		case strings.Contains(contentType, "application/json"):
			return "```json\n" + body + "\n```"
		default:
			return "```\n" + body + "\n```"
		}

	default: // html
		return body
	}
}

// pickHeaders keeps the headers worth reporting back to the model.
func pickHeaders(header http.Header) map[string]string {
	headers := make(map[string]string)
	for _, key := range []string{"Content-Type", "Content-Length", "Last-Modified"} {
		if value := header.Get(key); value != "" {
			headers[key] = value
		}
	}
	return headers
}

// htmlToText extracts the visible text of an HTML document.
func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// htmlToMarkdown converts an HTML document to Markdown.
func htmlToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)

	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}

	markdown = strings.TrimSpace(markdown)
	markdown = strings.ReplaceAll(markdown, "\n\n\n", "\n\n")
	return markdown, nil
}
