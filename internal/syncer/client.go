package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"raid-day/internal/model"
)

// Client 访问服务端同步接口的HTTP客户端。
// 所有请求都携带调用方的 ctx，会话销毁时在途请求随之取消。
type Client struct {
	baseURL    string
	instanceID string
	userID     string
	httpClient *http.Client
}

func NewClient(baseURL, instanceID, userID string) *Client {
	return &Client{
		baseURL:    baseURL,
		instanceID: instanceID,
		userID:     userID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// BossStatus 拉取Boss共享状态
func (c *Client) BossStatus(ctx context.Context) (*model.BossState, error) {
	var state model.BossState
	if err := c.getJSON(ctx, "/boss", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// CommunityStats 拉取社区统计
func (c *Client) CommunityStats(ctx context.Context) (*model.CommunityStats, error) {
	var stats model.CommunityStats
	if err := c.getJSON(ctx, "/community", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// PlayerSnapshot 拉取玩家权威快照
func (c *Client) PlayerSnapshot(ctx context.Context) (*model.PlayerSnapshot, error) {
	var snapshot model.PlayerSnapshot
	if err := c.getJSON(ctx, "/player", &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	url := fmt.Sprintf("%s/game/raid/%s%s", c.baseURL, c.instanceID, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-User-ID", c.userID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
