package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/opendataplatform/registry/common/models"
)

const jsonAPI = "application/vnd.api+json"

// DataCiteError is a failed DataCite API call. StatusCode is 503 when the
// API could not be reached.
type DataCiteError struct {
	StatusCode int
	Detail     string
}

func (e *DataCiteError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("datacite: status %d", e.StatusCode)
	}
	return fmt.Sprintf("datacite: status %d: %s", e.StatusCode, e.Detail)
}

// DataCiteRecord is a DOI as stored on DataCite
type DataCiteRecord struct {
	DOI      string         `json:"doi"`
	URL      string         `json:"url"`
	Metadata map[string]any `json:"metadata"`
}

// DataCiteRecordList is one page of DOIs
type DataCiteRecordList struct {
	TotalRecords int               `json:"total_records"`
	TotalPages   int               `json:"total_pages"`
	ThisPage     int               `json:"this_page"`
	Records      []*DataCiteRecord `json:"records"`
}

// DataCiteClient registers and withdraws DOIs through the DataCite REST API
type DataCiteClient struct {
	baseURL   string
	doiPrefix string
	http      *HTTPClient
	logger    Logger
}

// NewDataCiteClient creates a DataCite client for DOIs under doiPrefix
func NewDataCiteClient(baseURL, doiPrefix, username, password string, timeout time.Duration, logger Logger) *DataCiteClient {
	httpClient := &http.Client{
		Timeout: timeout,
	}

	return &DataCiteClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		doiPrefix: doiPrefix,
		http:      NewHTTPClient(httpClient, logger).WithBasicAuth(username, password),
		logger:    logger,
	}
}

// recordFrom reads a JSON:API DOI resource
func recordFrom(item gjson.Result) *DataCiteRecord {
	attributes, _ := item.Get("attributes").Value().(map[string]interface{})
	return &DataCiteRecord{
		DOI:      item.Get("id").String(),
		URL:      item.Get("attributes.url").String(),
		Metadata: attributes,
	}
}

// PublishDOI creates or updates a DOI and sets its state to findable
func (c *DataCiteClient) PublishDOI(ctx context.Context, record *models.PublishedDataCiteRecord) error {
	attributes := make(map[string]any, len(record.Metadata)+2)
	for k, v := range record.Metadata {
		attributes[k] = v
	}
	attributes["url"] = record.URL
	attributes["event"] = "publish"

	if _, err := c.request(ctx, http.MethodPut, "/dois/"+record.DOI, attributesPayload(record.DOI, attributes)); err != nil {
		return err
	}

	c.logger.Info("published DOI", "doi", record.DOI, "url", record.URL)
	return nil
}

// UnpublishDOI deletes a draft DOI, or hides a DOI that has already been
// registered. A DOI unknown to DataCite is ignored.
func (c *DataCiteClient) UnpublishDOI(ctx context.Context, doi string) error {
	_, err := c.request(ctx, http.MethodDelete, "/dois/"+doi, nil)

	var apiErr *DataCiteError
	switch {
	case err == nil:
		c.logger.Info("deleted draft DOI", "doi", doi)
		return nil

	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		return nil

	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusMethodNotAllowed:
		if _, err := c.request(ctx, http.MethodPut, "/dois/"+doi, attributesPayload(doi, map[string]any{"event": "hide"})); err != nil {
			return err
		}
		c.logger.Info("hid DOI", "doi", doi)
		return nil

	default:
		return err
	}
}

// GetDOI fetches one DOI
func (c *DataCiteClient) GetDOI(ctx context.Context, doi string) (*DataCiteRecord, error) {
	raw, err := c.request(ctx, http.MethodGet, "/dois/"+doi, nil)
	if err != nil {
		return nil, err
	}
	return recordFrom(gjson.GetBytes(raw, "data")), nil
}

// ListDOIs returns one page of the DOIs under the client's prefix.
// DataCite serves at most 10,000 records through page numbers.
func (c *DataCiteClient) ListDOIs(ctx context.Context, pageSize, pageNum int) (*DataCiteRecordList, error) {
	query := url.Values{}
	query.Set("query", fmt.Sprintf("id:%s/*", c.doiPrefix))
	query.Set("page[size]", fmt.Sprint(pageSize))
	query.Set("page[number]", fmt.Sprint(pageNum))

	raw, err := c.request(ctx, http.MethodGet, "/dois/?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	result := gjson.ParseBytes(raw)
	items := result.Get("data").Array()
	list := &DataCiteRecordList{
		TotalRecords: int(result.Get("meta.total").Int()),
		TotalPages:   int(result.Get("meta.totalPages").Int()),
		ThisPage:     int(result.Get("meta.page").Int()),
		Records:      make([]*DataCiteRecord, 0, len(items)),
	}
	for _, item := range items {
		list.Records = append(list.Records, recordFrom(item))
	}
	return list, nil
}

func attributesPayload(doi string, attributes map[string]any) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"id":         doi,
			"attributes": attributes,
		},
	}
}

// request sends payload as JSON:API and returns the response body
func (c *DataCiteClient) request(ctx context.Context, method, path string, payload any) ([]byte, error) {
	header := http.Header{}
	if method != http.MethodDelete {
		header.Set("Accept", jsonAPI)
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode datacite payload: %w", err)
		}
		body = bytes.NewReader(raw)
		header.Set("Content-Type", jsonAPI)
	}

	resp, err := c.http.DoRequest(ctx, method, c.baseURL+path, body, header)
	if err != nil {
		c.logger.Warn("datacite request failed", "method", method, "path", path, "error", err)
		return nil, &DataCiteError{StatusCode: http.StatusServiceUnavailable, Detail: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read datacite response: %w", err)
	}

	if resp.StatusCode >= 400 {
		detail := strings.TrimSpace(string(raw))
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return nil, &DataCiteError{StatusCode: resp.StatusCode, Detail: detail}
	}

	if len(raw) > 0 && !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("failed to decode datacite response: invalid JSON")
	}
	return raw, nil
}
