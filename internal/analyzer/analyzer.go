// Package analyzer provides the client for the external document analysis
// service. The service receives document URLs and returns structured data
// extracted from them, grouped by the kind of document it recognized.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"legalcase/internal/config"
	"legalcase/internal/model"
)

// ParseRequest is the request body sent to the analysis service.
type ParseRequest struct {
	DocURLs []string `json:"doc_urls"`
}

// ParseResponse is the response body returned by the analysis service. Each
// group is present only when the service recognized a document of that kind.
type ParseResponse struct {
	P60                map[string]any `json:"p60"`
	ParentsInfo        map[string]any `json:"parents_info"`
	Passport           map[string]any `json:"passport"`
	RefereeAndIdentity map[string]any `json:"referee_and_identity"`
	RefereeInfo        map[string]any `json:"referee_info"`
	UtilityBill        map[string]any `json:"utility_bill"`
}

// Result is the classification outcome for a single document.
type Result struct {
	DocumentType     string
	DocumentCategory model.DocumentCategory
	ExtractedData    map[string]any
	Complete         bool
	Err              string
}

// Failed reports whether the analysis produced an error instead of a
// classification.
func (r Result) Failed() bool { return r.Err != "" }

// ErrorResult builds the rejection outcome used when analysis cannot
// complete. The document falls back to an incomplete supporting document.
func ErrorResult(msg string) Result {
	return Result{
		DocumentType:     "OTHER",
		DocumentCategory: model.CategorySupporting,
		ExtractedData:    map[string]any{},
		Complete:         false,
		Err:              msg,
	}
}

// Analyzer classifies documents by their downloadable URL.
type Analyzer interface {
	Analyze(ctx context.Context, documentURL string) Result
}

// Client is the HTTP implementation of Analyzer.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an analysis service client from configuration.
func NewClient(cfg config.AnalyzerConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
	}
}

// Analyze submits the document URL to the analysis service and maps the
// structured response to a classification. Transport and decode errors are
// folded into an error Result rather than returned, so callers always get an
// outcome to record against the document.
func (c *Client) Analyze(ctx context.Context, documentURL string) Result {
	resp, err := c.parse(ctx, ParseRequest{DocURLs: []string{documentURL}})
	if err != nil {
		return ErrorResult(err.Error())
	}
	return Classify(resp)
}

func (c *Client) parse(ctx context.Context, reqBody ParseRequest) (*ParseResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files/structure", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call analysis service: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("analysis service returned %d: %s", res.StatusCode, body)
	}

	var out ParseResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// Classify maps a parse response to a document classification. The first
// populated group wins; documents nothing matched stay generic supporting
// documents pending manual review.
func Classify(resp *ParseResponse) Result {
	if resp == nil {
		return ErrorResult("empty response from analysis service")
	}

	switch {
	case len(resp.Passport) > 0:
		return Result{
			DocumentType:     "IDENTITY",
			DocumentCategory: model.CategoryProfile,
			ExtractedData:    resp.Passport,
			Complete:         true,
		}
	case len(resp.UtilityBill) > 0:
		return Result{
			DocumentType:     "ADDRESS_PROOF",
			DocumentCategory: model.CategoryProfile,
			ExtractedData:    resp.UtilityBill,
			Complete:         true,
		}
	case len(resp.P60) > 0:
		return Result{
			DocumentType:     "FINANCIAL",
			DocumentCategory: model.CategoryProfile,
			ExtractedData:    resp.P60,
			Complete:         true,
		}
	case len(resp.ParentsInfo) > 0:
		// Applicant background data needs manual review before it counts
		// as complete.
		return Result{
			DocumentType:     "APPLICANT",
			DocumentCategory: model.CategoryProfile,
			ExtractedData:    resp.ParentsInfo,
			Complete:         false,
		}
	default:
		return Result{
			DocumentType:     "OTHER",
			DocumentCategory: model.CategorySupporting,
			ExtractedData:    map[string]any{},
			Complete:         false,
		}
	}
}
