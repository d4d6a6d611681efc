package client

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
	"github.com/otherjamesbrown/meetchat/pkg/images"
	"github.com/otherjamesbrown/meetchat/pkg/sentiment"
)

// Analysis service methods. Requests and responses are google.protobuf.Struct.
const (
	AnalysisService         = "meetchat.analysis.v1.AnalysisService"
	MethodClassifySentiment = "/" + AnalysisService + "/ClassifySentiment"
	MethodGenerateImage     = "/" + AnalysisService + "/GenerateImage"
)

// SentimentClient classifies statements through the analysis service.
type SentimentClient struct {
	client *GRPCClient
}

// NewSentimentClient creates a SentimentClient on a connected GRPCClient.
func NewSentimentClient(c *GRPCClient) *SentimentClient {
	return &SentimentClient{client: c}
}

// Classify implements sentiment.Classifier.
// Request: {"statements": [string]}; response: {"sentiment", "confidence", "examples"}.
func (s *SentimentClient) Classify(ctx context.Context, statements []string) (*sentiment.Result, error) {
	items := make([]any, len(statements))
	for i, st := range statements {
		items[i] = st
	}
	req, err := structpb.NewStruct(map[string]any{"statements": items})
	if err != nil {
		return nil, fmt.Errorf("building sentiment request: %w", err)
	}

	resp, err := s.client.Invoke(ctx, MethodClassifySentiment, req)
	if err != nil {
		return nil, err
	}
	return decodeSentiment(resp)
}

func decodeSentiment(resp *structpb.Struct) (*sentiment.Result, error) {
	fields := resp.GetFields()

	label := sentiment.Label(fields["sentiment"].GetStringValue())
	switch label {
	case sentiment.Positive, sentiment.Negative, sentiment.Neutral:
	default:
		return nil, fmt.Errorf("unknown sentiment %q: %w", label, mcerrors.ErrUpstream)
	}

	conf := fields["confidence"].GetNumberValue()
	if conf < 0 || conf > 1 {
		return nil, fmt.Errorf("confidence %v out of range: %w", conf, mcerrors.ErrUpstream)
	}

	res := &sentiment.Result{Sentiment: label, Confidence: conf}
	for _, v := range fields["examples"].GetListValue().GetValues() {
		if len(res.Examples) == sentiment.MaxExamples {
			break
		}
		if ex := v.GetStringValue(); ex != "" {
			res.Examples = append(res.Examples, ex)
		}
	}
	return res, nil
}

// ImageClient renders images through the analysis service.
type ImageClient struct {
	client *GRPCClient
}

// NewImageClient creates an ImageClient on a connected GRPCClient.
func NewImageClient(c *GRPCClient) *ImageClient {
	return &ImageClient{client: c}
}

// Generate implements tools.ImageGenerator.
// Request: {"prompt", "style"}; response: {"url"}.
func (g *ImageClient) Generate(ctx context.Context, prompt string, style images.Style) (string, error) {
	req, err := structpb.NewStruct(map[string]any{
		"prompt": prompt,
		"style":  string(style),
	})
	if err != nil {
		return "", fmt.Errorf("building image request: %w", err)
	}

	resp, err := g.client.Invoke(ctx, MethodGenerateImage, req)
	if err != nil {
		return "", err
	}

	url := resp.GetFields()["url"].GetStringValue()
	if url == "" {
		return "", fmt.Errorf("image service returned no url: %w", mcerrors.ErrUpstream)
	}
	return url, nil
}
