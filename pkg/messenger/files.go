package messenger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"evidence-portal/internal/config"
	log "github.com/sirupsen/logrus"
)

const defaultAPIURL = "https://myteam.mail.ru/bot/v1"

type FileInfo struct {
	Type     string `json:"type"`
	Size     int64  `json:"size"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// Files looks up files users sent to the bot. The messenger only passes file
// ids around; the download link behind an id is temporary.
type Files struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewFiles(cfg config.Bot, client *http.Client) (*Files, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}
	base := cfg.APIURL
	if base == "" {
		base = defaultAPIURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Files{token: cfg.Token, baseURL: strings.TrimRight(base, "/"), client: client}, nil
}

func (f *Files) Info(ctx context.Context, fileID string) (*FileInfo, error) {
	query := url.Values{}
	query.Set("token", f.token)
	query.Set("fileId", fileID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/files/getInfo?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build file info request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("file info request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warnf("closing file info body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file info %s: status %d", fileID, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file info: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode file info: %w", err)
	}
	return &info, nil
}
