package enrich

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultFaceEndpoint is the public detect endpoint of the Face++ API.
const DefaultFaceEndpoint = "https://api-us.faceplusplus.com/facepp/v3/detect"

// FaceClient calls a face-detection API with a base64 image payload.
type FaceClient struct {
	Endpoint string
	Key      string
	Secret   string
	Client   *http.Client
	Logger   *slog.Logger
}

func (c *FaceClient) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return DefaultFaceEndpoint
}

func (c *FaceClient) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (c *FaceClient) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Detect posts the image to the detection API and returns the raw JSON
// response. Any failure, including non-2xx statuses and invalid JSON,
// yields nil so the caller keeps an empty enrichment field.
func (c *FaceClient) Detect(ctx context.Context, imageBase64 string) json.RawMessage {
	if imageBase64 == "" || c.Key == "" || c.Secret == "" {
		return nil
	}
	form := url.Values{}
	form.Set("api_key", c.Key)
	form.Set("api_secret", c.Secret)
	form.Set("image_base64", imageBase64)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		c.logger().Debug("enrich: face request build failed", "error", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client().Do(req)
	if err != nil {
		c.logger().Debug("enrich: face detect failed", "error", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger().Debug("enrich: face detect failed", "status", resp.StatusCode)
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.logger().Debug("enrich: face response read failed", "error", err)
		return nil
	}
	if !json.Valid(body) {
		c.logger().Debug("enrich: face response is not json")
		return nil
	}
	return json.RawMessage(body)
}
