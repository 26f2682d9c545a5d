// Package source reads markdown files out of a GitHub repository using the
// contents API for directory listings and raw.githubusercontent.com for file
// bodies.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultAPIURL is the GitHub REST API base.
	DefaultAPIURL = "https://api.github.com"
	// DefaultRawURL is the base used for raw file content and canonical URLs.
	DefaultRawURL = "https://raw.githubusercontent.com"

	markdownExt = ".md"
)

// Entry is one item of a contents API directory listing.
type Entry struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// Options configures a Client. Zero values fall back to the public GitHub hosts.
type Options struct {
	APIURL  string
	RawURL  string
	Token   string
	Branch  string // ref passed to the contents API; empty means the default branch
	Timeout time.Duration
	HTTP    *http.Client
}

// Client lists and fetches repository files.
type Client struct {
	http   *http.Client
	apiURL string
	rawURL string
	ref    string
}

// NewClient builds a Client. When a token is set, every request carries it as a
// bearer credential.
func NewClient(opts Options) *Client {
	hc := opts.HTTP
	if hc == nil {
		hc = &http.Client{}
		if opts.Token != "" {
			ctx := context.WithValue(context.Background(), oauth2.HTTPClient, hc)
			hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}))
		}
		// No timeout unless configured; the transport defaults apply.
		hc.Timeout = opts.Timeout
	}
	c := &Client{
		http:   hc,
		apiURL: strings.TrimRight(opts.APIURL, "/"),
		rawURL: strings.TrimRight(opts.RawURL, "/"),
		ref:    opts.Branch,
	}
	if c.apiURL == "" {
		c.apiURL = DefaultAPIURL
	}
	if c.rawURL == "" {
		c.rawURL = DefaultRawURL
	}
	return c
}

// frame is one directory on the traversal stack; next indexes the entry to
// visit when the frame is resumed.
type frame struct {
	entries []Entry
	next    int
}

// ListMarkdownFiles walks the tree below root and returns the path of every
// file ending in ".md". Files are emitted depth-first in listing order: the
// contents of a subdirectory appear where the subdirectory was listed.
// Any failed listing aborts the walk.
func (c *Client) ListMarkdownFiles(ctx context.Context, owner, repo, root string) ([]string, error) {
	entries, err := c.listDir(ctx, owner, repo, root)
	if err != nil {
		return nil, err
	}
	var files []string
	stack := []*frame{{entries: entries}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next >= len(top.entries) {
			stack = stack[:len(stack)-1]
			continue
		}
		e := top.entries[top.next]
		top.next++
		switch e.Type {
		case "file":
			if strings.HasSuffix(e.Name, markdownExt) {
				files = append(files, e.Path)
			}
		case "dir":
			sub, err := c.listDir(ctx, owner, repo, e.Path)
			if err != nil {
				return nil, err
			}
			stack = append(stack, &frame{entries: sub})
		}
	}
	return files, nil
}

func (c *Client) listDir(ctx context.Context, owner, repo, dir string) ([]Entry, error) {
	u := c.apiURL + "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo) + "/contents/" + escapePath(dir)
	if c.ref != "" {
		u += "?ref=" + url.QueryEscape(c.ref)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &ListError{Path: dir, Err: err}
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ListError{Path: dir, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &ListError{Path: dir, StatusCode: resp.StatusCode}
	}
	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, &ListError{Path: dir, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode listing: %w", err)}
	}
	return entries, nil
}

// FetchContent returns the raw text of path at branch.
func (c *Client) FetchContent(ctx context.Context, owner, repo, branch, path string) (string, error) {
	u := rawURL(c.rawURL, owner, repo, branch, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", &FetchError{Path: path, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &FetchError{Path: path, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", &FetchError{Path: path, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{Path: path, StatusCode: resp.StatusCode, Err: err}
	}
	return string(body), nil
}

// CanonicalURL is the stable raw-content address of a file. It only depends on
// its arguments, never on the host a Client actually fetches from.
func CanonicalURL(owner, repo, branch, path string) string {
	return rawURL(DefaultRawURL, owner, repo, branch, path)
}

func rawURL(base, owner, repo, branch, path string) string {
	return base + "/" + url.PathEscape(owner) + "/" + url.PathEscape(repo) + "/" + url.PathEscape(branch) + "/" + escapePath(path)
}

// escapePath escapes each segment of a slash separated path.
func escapePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	parts := strings.Split(p, "/")
	for i := range parts {
		parts[i] = url.PathEscape(parts[i])
	}
	return strings.Join(parts, "/")
}
