package nlp

import (
	"context"
	"encoding/base64"
	"fmt"

	language "cloud.google.com/go/language/apiv2"
	"cloud.google.com/go/language/apiv2/languagepb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go-icewatch/monitoring"
)

// Candidate is a place-like named entity found in text.
type Candidate struct {
	Name string
	Type string // LOCATION, ADDRESS, ORGANIZATION, ...
}

// Recognizer extracts candidate place names from free text. The
// extractor treats a nil Recognizer as degraded (gazetteer-only) mode.
type Recognizer interface {
	Entities(ctx context.Context, text string) ([]Candidate, error)
}

// Client wraps the Cloud Natural Language API for entity extraction.
type Client struct {
	lang *language.Client
}

// NewClient initializes a language client from base64-encoded
// service-account JSON. Empty credentials return (nil, nil): the caller
// runs in gazetteer-only mode.
func NewClient(ctx context.Context, encodedCreds string) (*Client, error) {
	if encodedCreds == "" {
		return nil, nil
	}
	creds, err := base64.StdEncoding.DecodeString(encodedCreds)
	if err != nil {
		return nil, fmt.Errorf("decoding natural language credentials: %w", err)
	}
	lang, err := language.NewClient(ctx, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, fmt.Errorf("creating natural language client: %w", err)
	}
	return &Client{lang: lang}, nil
}

// Close releases the underlying client.
func (c *Client) Close() {
	if c != nil && c.lang != nil {
		c.lang.Close()
	}
}

// Entities sends text to the API and returns place-like entities
// (LOCATION, ADDRESS, ORGANIZATION). The caller degrades to
// gazetteer-only extraction for the report when this fails.
func (c *Client) Entities(ctx context.Context, text string) ([]Candidate, error) {
	req := &languagepb.AnalyzeEntitiesRequest{
		Document: &languagepb.Document{
			Source: &languagepb.Document_Content{
				Content: text,
			},
			Type: languagepb.Document_PLAIN_TEXT,
		},
		EncodingType: languagepb.EncodingType_UTF8,
	}

	resp, err := c.lang.AnalyzeEntities(ctx, req)
	if err != nil {
		switch status.Code(err) {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
			monitoring.Warnf("nlp: transient entity analysis failure: %v", err)
		default:
			monitoring.Errorf("nlp: entity analysis failed: %v", err)
		}
		return nil, fmt.Errorf("AnalyzeEntities error: %w", err)
	}

	var candidates []Candidate
	for _, e := range resp.Entities {
		switch e.Type.String() {
		case "LOCATION", "ADDRESS", "ORGANIZATION":
			candidates = append(candidates, Candidate{Name: e.Name, Type: e.Type.String()})
		}
	}
	return candidates, nil
}
