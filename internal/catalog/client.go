// Package catalog talks to the document API: docsets, their documents and
// projects, and the artifacts projects publish.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/metrics"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

type Client struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient *http.Client
	logger     *logger_i.Logger
}

type DocumentDetails struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type Artifact struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type projectResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Docset struct {
		ID string `json:"id"`
	} `json:"docset"`
}

func NewClient(cfg config.Catalog, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		pageSize:   cfg.PageSize,
		httpClient: httpClient,
		logger:     logger_i.NewLogger("catalog"),
	}
}

func (c *Client) ListDocsets(ctx context.Context) ([]docModel.Docset, error) {
	return listAll[docModel.Docset](ctx, c, c.paged(c.baseURL+"/docsets"), "docsets")
}

func (c *Client) GetDocset(ctx context.Context, id string) (docModel.Docset, error) {
	var ds docModel.Docset
	err := c.getJSON(ctx, c.baseURL+"/docsets/"+url.PathEscape(id), &ds)
	if isStatus(err, http.StatusNotFound) {
		return docModel.Docset{}, &docModel.NotFoundError{Kind: "docset", ID: id}
	}
	return ds, err
}

func (c *Client) ListDocuments(ctx context.Context, docsetID string) ([]DocumentDetails, error) {
	u := c.paged(c.baseURL + "/docsets/" + url.PathEscape(docsetID) + "/documents")
	docs, err := listAll[DocumentDetails](ctx, c, u, "documents")
	if isStatus(err, http.StatusNotFound) {
		return nil, &docModel.NotFoundError{Kind: "docset", ID: docsetID}
	}
	return docs, err
}

func (c *Client) ListProjects(ctx context.Context, docsetID string) ([]docModel.Project, error) {
	u := c.paged(c.baseURL + "/projects?docset.id=" + url.QueryEscape(docsetID))
	raw, err := listAll[projectResponse](ctx, c, u, "projects")
	if err != nil {
		return nil, err
	}
	projects := make([]docModel.Project, 0, len(raw))
	for _, p := range raw {
		if p.URL == "" {
			p.URL = c.baseURL + "/projects/" + url.PathEscape(p.ID)
		}
		projects = append(projects, docModel.Project{ID: p.ID, Name: p.Name, URL: p.URL, DocsetID: p.Docset.ID})
	}
	return projects, nil
}

// DocumentXML returns the structured XML of one document.
func (c *Client) DocumentXML(ctx context.Context, docsetID, docID string) ([]byte, error) {
	u := fmt.Sprintf("%s/docsets/%s/documents/%s/dgml", c.baseURL, url.PathEscape(docsetID), url.PathEscape(docID))
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &docModel.DownloadError{URL: u, Err: err}
	}
	return body, nil
}

// LatestArtifacts lists the latest artifacts of a project named name. A
// project without a published listing yields a NotFoundError.
func (c *Client) LatestArtifacts(ctx context.Context, projectURL, name string) ([]Artifact, error) {
	u := strings.TrimRight(projectURL, "/") + "/artifacts/latest?name=" + url.QueryEscape(name)
	artifacts, err := listAll[Artifact](ctx, c, u, "artifacts")
	if isStatus(err, http.StatusNotFound) {
		return nil, &docModel.NotFoundError{Kind: "artifact listing", ID: projectURL}
	}
	return artifacts, err
}

// DownloadArtifact streams the content of an artifact into w.
func (c *Client) DownloadArtifact(ctx context.Context, projectURL, artifactID string, w io.Writer) error {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("report_download", time.Since(start)) }()

	u := fmt.Sprintf("%s/artifacts/latest/%s/content", strings.TrimRight(projectURL, "/"), url.PathEscape(artifactID))
	resp, err := c.get(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(w, resp.Body); err != nil {
		return &docModel.DownloadError{URL: u, Err: err}
	}
	return nil
}

// get issues an authenticated GET. Any non 2xx status is a DownloadError.
func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &docModel.DownloadError{URL: u, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		c.logger.WithTrace(ctx).Warn("Unexpected status", "url", u, "status", resp.StatusCode)
		return nil, &docModel.DownloadError{URL: u, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	resp, err := c.get(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &docModel.FormatError{Path: u, Err: err}
	}
	return nil
}

func (c *Client) paged(u string) string {
	if c.pageSize <= 0 {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%slimit=%d", u, sep, c.pageSize)
}

// listAll follows "next" links until the listing is exhausted, collecting
// the array stored under key on every page.
func listAll[T any](ctx context.Context, c *Client, u, key string) ([]T, error) {
	var all []T
	for u != "" {
		var page map[string]json.RawMessage
		if err := c.getJSON(ctx, u, &page); err != nil {
			return nil, err
		}
		if items, ok := page[key]; ok {
			var batch []T
			if err := json.Unmarshal(items, &batch); err != nil {
				return nil, &docModel.FormatError{Path: u, Err: err}
			}
			all = append(all, batch...)
		}
		u = ""
		if next, ok := page["next"]; ok {
			_ = json.Unmarshal(next, &u)
		}
	}
	return all, nil
}

func isStatus(err error, status int) bool {
	var de *docModel.DownloadError
	return errors.As(err, &de) && de.StatusCode == status
}
