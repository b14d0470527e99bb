// Package pdf converts rendered budget HTML to PDF through a Gotenberg instance.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

// GotenbergClient converts HTML to PDF via a Gotenberg instance.
type GotenbergClient struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// Config is the subset of application settings the client reads.
type Config interface {
	GetGotenbergURL() string
	GetGotenbergUsername() string
	GetGotenbergPassword() string
	IsGotenbergEnabled() bool
}

// NewFromConfig returns nil when Gotenberg is not configured.
func NewFromConfig(cfg Config) *GotenbergClient {
	if cfg == nil || !cfg.IsGotenbergEnabled() {
		return nil
	}
	return NewGotenbergClient(cfg.GetGotenbergURL(), cfg.GetGotenbergUsername(), cfg.GetGotenbergPassword())
}

// NewGotenbergClient creates a client pointing at the given Gotenberg URL.
// If username and password are non-empty, every request will include HTTP Basic Auth.
func NewGotenbergClient(baseURL, username, password string) *GotenbergClient {
	return &GotenbergClient{
		baseURL:  baseURL,
		username: username,
		password: password,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// ConvertOpts configures the HTML to PDF conversion request.
type ConvertOpts struct {
	MarginTop    string
	MarginBottom string
	MarginLeft   string
	MarginRight  string
	// WaitDelay adds a delay before capture (e.g. "1s") for font loading.
	WaitDelay string
	// FooterHTML is sent as footer.html and repeated on every page.
	FooterHTML []byte
}

// budgetFooter numbers the pages. Gotenberg fills the pageNumber and
// totalPages spans; the footer needs inline styles.
const budgetFooter = `<html><body style="font-family:sans-serif;font-size:8px;color:#6b7280;width:100%;text-align:center;margin:0 0.5in">` +
	`Página <span class="pageNumber"></span> de <span class="totalPages"></span></body></html>`

// BudgetOpts returns A4 margins and the numbered footer used for budgets.
func BudgetOpts() ConvertOpts {
	return ConvertOpts{
		MarginTop:    "0.5",
		MarginBottom: "0.6",
		MarginLeft:   "0.5",
		MarginRight:  "0.5",
		WaitDelay:    "1s",
		FooterHTML:   []byte(budgetFooter),
	}
}

// ConvertHTML sends index.html to Gotenberg and returns the resulting PDF bytes.
func (g *GotenbergClient) ConvertHTML(ctx context.Context, indexHTML []byte, opts ConvertOpts) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := map[string]string{
		"paperWidth":        "8.27",
		"paperHeight":       "11.7",
		"marginTop":         opts.MarginTop,
		"marginBottom":      opts.MarginBottom,
		"marginLeft":        opts.MarginLeft,
		"marginRight":       opts.MarginRight,
		"printBackground":   "true",
		"preferCssPageSize": "false",
	}
	if opts.WaitDelay != "" {
		fields["waitDelay"] = opts.WaitDelay
		fields["skipNetworkIdleEvent"] = "true"
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}

	if err := addFilePart(writer, "index.html", "text/html", indexHTML); err != nil {
		return nil, err
	}
	if len(opts.FooterHTML) > 0 {
		if err := addFilePart(writer, "footer.html", "text/html", opts.FooterHTML); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	return g.doPost(ctx, "/forms/chromium/convert/html", body, writer.FormDataContentType())
}

func (g *GotenbergClient) doPost(ctx context.Context, path string, body *bytes.Buffer, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if g.username != "" && g.password != "" {
		req.SetBasicAuth(g.username, g.password)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gotenberg %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("gotenberg %s returned %d: %s", path, resp.StatusCode, string(errBody))
	}

	result, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", path, err)
	}
	return result, nil
}

func addFilePart(w *multipart.Writer, filename, mimeType string, content []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, filename))
	h.Set("Content-Type", mimeType)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part %s: %w", filename, err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("write part %s: %w", filename, err)
	}
	return nil
}
