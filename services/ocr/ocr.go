// Package ocr extracts text and identity fields from uploaded document
// images. A paid remote backend is tried first; on any failure a self-hosted
// backend takes over. Both failing yields empty text rather than an error, so
// callers treat "no text" and "unreadable text" the same way.
package ocr

import (
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"

	"scraphub/config"
)

// TextExtractor is the surface the KYC engine depends on.
type TextExtractor interface {
	ExtractText(documentURL string) string
}

type Client struct {
	http *resty.Client
}

func NewClient() *Client {
	timeout := 20 * time.Second
	if config.AppConfig != nil && config.AppConfig.OcrTimeoutSeconds > 0 {
		timeout = time.Duration(config.AppConfig.OcrTimeoutSeconds) * time.Second
	}
	return &Client{
		http: resty.New().SetTimeout(timeout),
	}
}

// remoteOcrResponse represents the response from the remote OCR API
type remoteOcrResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool   `json:"IsErroredOnProcessing"`
	ErrorMessage          string `json:"ErrorMessage"`
}

// localOcrResponse represents the response from the self-hosted OCR service
type localOcrResponse struct {
	Text string `json:"text"`
}

// ExtractText runs OCR over the document at documentURL. Returns "" when
// every backend fails; the decision engine turns that into a rejection, not
// a crash.
func (c *Client) ExtractText(documentURL string) string {
	if text, err := c.extractRemote(documentURL); err == nil && text != "" {
		return text
	} else if err != nil {
		log.Printf("Primary OCR backend failed for %s: %v", documentURL, err)
	}

	text, err := c.extractLocal(documentURL)
	if err != nil {
		log.Printf("Fallback OCR backend failed for %s: %v", documentURL, err)
		return ""
	}
	return text
}

func (c *Client) extractRemote(documentURL string) (string, error) {
	var parsed remoteOcrResponse

	resp, err := c.http.R().
		SetQueryParams(map[string]string{
			"apikey": config.AppConfig.OcrApiKey,
			"url":    documentURL,
			"OCREngine": "2",
		}).
		SetResult(&parsed).
		Get(config.AppConfig.OcrApiURL)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("remote OCR returned status %d", resp.StatusCode())
	}
	if parsed.IsErroredOnProcessing {
		return "", fmt.Errorf("remote OCR processing error: %s", parsed.ErrorMessage)
	}
	if len(parsed.ParsedResults) == 0 {
		return "", nil
	}
	return parsed.ParsedResults[0].ParsedText, nil
}

func (c *Client) extractLocal(documentURL string) (string, error) {
	var parsed localOcrResponse

	resp, err := c.http.R().
		SetBody(map[string]string{"url": documentURL}).
		SetResult(&parsed).
		Post(config.AppConfig.LocalOcrURL)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("local OCR returned status %d", resp.StatusCode())
	}
	return parsed.Text, nil
}
