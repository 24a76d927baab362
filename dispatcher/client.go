package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// UpstreamClient is the HTTP contract an upstream image-generation server
// exposes. It is
// an interface so tests can substitute a fake without opening sockets.
type UpstreamClient interface {
	GetModel(ctx context.Context, u Address) (string, error)
	SetModel(ctx context.Context, u Address, checkpoint string) error
	Txt2Img(ctx context.Context, u Address, payload Txt2ImgPayload) ([]string, error)
	Img2Img(ctx context.Context, u Address, payload Img2ImgPayload) ([]string, error)
}

// Address is host:port for one upstream.
type Address struct {
	Host string
	Port int
}

func (a Address) String() string { return fmt.Sprintf("%s:%d", a.Host, a.Port) }

func (a Address) baseURL() string { return fmt.Sprintf("http://%s:%d", a.Host, a.Port) }

// ControlNetArg is one entry of alwaysOnScripts.controlnet.args, used to
// carry sketch-to-image conditioning.
type ControlNetArg struct {
	InputImage string `json:"input_image"`
	Module     string `json:"module"`
	Model      string `json:"model"`
	InvertInput bool  `json:"invert_input"`
}

type Txt2ImgPayload struct {
	Prompt           string                   `json:"prompt"`
	NegativePrompt   string                   `json:"negative_prompt,omitempty"`
	BatchSize        int                      `json:"batch_size"`
	NIter            int                      `json:"n_iter"`
	Seed             int64                    `json:"seed"`
	AlwaysOnScripts  map[string]interface{}   `json:"alwayson_scripts,omitempty"`
}

type Img2ImgPayload struct {
	InitImages        []string `json:"init_images"`
	Prompt            string   `json:"prompt"`
	NegativePrompt    string   `json:"negative_prompt,omitempty"`
	DenoisingStrength float64  `json:"denoising_strength"`
	SamplerName       string   `json:"sampler_name"`
	BatchSize         int      `json:"batch_size"`
	NIter             int      `json:"n_iter"`
	Seed              int64    `json:"seed"`
}

type imagesResponse struct {
	Images []string `json:"images"`
}

type optionsResponse struct {
	SDModelCheckpoint string `json:"sd_model_checkpoint"`
}

// httpClient is the real UpstreamClient, a thin net/http+encoding/json
// wrapper: no generated SDK exists for this API, so a hand-rolled client
// is the grounded choice.
type httpClient struct {
	client *http.Client
}

func NewHTTPClient(timeout time.Duration) UpstreamClient {
	return &httpClient{client: &http.Client{Timeout: timeout}}
}

func (c *httpClient) GetModel(ctx context.Context, u Address) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.baseURL()+"/options", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET /options: status %d", resp.StatusCode)
	}
	var out optionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("GET /options: %w", err)
	}
	return out.SDModelCheckpoint, nil
}

func (c *httpClient) SetModel(ctx context.Context, u Address, checkpoint string) error {
	body, _ := json.Marshal(map[string]string{"sd_model_checkpoint": checkpoint})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL()+"/options", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("POST /options: status %d", resp.StatusCode)
	}
	return nil
}

func (c *httpClient) Txt2Img(ctx context.Context, u Address, payload Txt2ImgPayload) ([]string, error) {
	return c.postImages(ctx, u.baseURL()+"/txt2img", payload)
}

func (c *httpClient) Img2Img(ctx context.Context, u Address, payload Img2ImgPayload) ([]string, error) {
	return c.postImages(ctx, u.baseURL()+"/img2img", payload)
}

func (c *httpClient) postImages(ctx context.Context, url string, payload interface{}) ([]string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	var out imagesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%s: non-JSON or unexpected shape: %w", url, err)
	}
	if out.Images == nil {
		return nil, fmt.Errorf("%s: response missing images field", url)
	}
	return out.Images, nil
}
