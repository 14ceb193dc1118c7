package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// BotClient talks to the messaging platform's bot HTTP API. It covers
// the two narrow capabilities this system needs: minting single-use
// invites and observing membership changes of the gated chat.
type BotClient struct {
	baseURL    string
	token      string
	chatID     int64
	httpClient *http.Client
	log        *zap.Logger

	offset int64 // getUpdates cursor
}

func NewBotClient(baseURL, token string, chatID int64, log *zap.Logger) *BotClient {
	return &BotClient{
		baseURL: baseURL,
		token:   token,
		chatID:  chatID,
		httpClient: &http.Client{
			Timeout: 35 * time.Second, // above the long-poll timeout
		},
		log: log,
	}
}

// JoinEvent is a membership transition into the gated chat.
type JoinEvent struct {
	ChatID      int64
	ExternalID  int64
	Username    string
	DisplayName string
	JoinedAt    time.Time
}

type apiEnvelope struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (c *BotClient) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bot api transport: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read bot api response: %w", err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode bot api response (status %d): %w", resp.StatusCode, err)
	}
	if !env.OK {
		return fmt.Errorf("bot api %s failed: %s", method, env.Description)
	}
	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// Ping verifies the bot credential works before the server starts
// serving traffic.
func (c *BotClient) Ping(ctx context.Context) error {
	var me struct {
		Username string `json:"username"`
	}
	if err := c.call(ctx, "getMe", map[string]interface{}{}, &me); err != nil {
		return err
	}
	c.log.Info("bot api reachable", zap.String("bot", me.Username))
	return nil
}

// CreateInvite mints a single-use invite link to the gated chat that
// expires after ttl.
func (c *BotClient) CreateInvite(ctx context.Context, ttl time.Duration) (string, error) {
	params := map[string]interface{}{
		"chat_id":      c.chatID,
		"member_limit": 1,
		"expire_date":  time.Now().Add(ttl).Unix(),
	}
	var result struct {
		InviteLink string `json:"invite_link"`
	}
	if err := c.call(ctx, "createChatInviteLink", params, &result); err != nil {
		return "", err
	}
	if result.InviteLink == "" {
		return "", fmt.Errorf("bot api returned empty invite link")
	}
	return result.InviteLink, nil
}

type chatMemberUpdate struct {
	UpdateID   int64 `json:"update_id"`
	ChatMember *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Date          int64 `json:"date"`
		OldChatMember struct {
			Status string `json:"status"`
		} `json:"old_chat_member"`
		NewChatMember struct {
			Status string `json:"status"`
			User   struct {
				ID        int64  `json:"id"`
				Username  string `json:"username"`
				FirstName string `json:"first_name"`
			} `json:"user"`
		} `json:"new_chat_member"`
	} `json:"chat_member"`
}

// PollJoins long-polls the update feed and returns membership
// transitions from left/kicked to member/administrator on the gated
// chat. Unrelated updates advance the cursor and are dropped.
func (c *BotClient) PollJoins(ctx context.Context) ([]JoinEvent, error) {
	params := map[string]interface{}{
		"offset":          c.offset,
		"timeout":         25,
		"allowed_updates": []string{"chat_member"},
	}
	var updates []chatMemberUpdate
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}

	var events []JoinEvent
	for _, u := range updates {
		if u.UpdateID >= c.offset {
			c.offset = u.UpdateID + 1
		}
		cm := u.ChatMember
		if cm == nil || cm.Chat.ID != c.chatID {
			continue
		}
		if !wasOutside(cm.OldChatMember.Status) || !isMember(cm.NewChatMember.Status) {
			continue
		}
		events = append(events, JoinEvent{
			ChatID:      cm.Chat.ID,
			ExternalID:  cm.NewChatMember.User.ID,
			Username:    cm.NewChatMember.User.Username,
			DisplayName: cm.NewChatMember.User.FirstName,
			JoinedAt:    time.Unix(cm.Date, 0),
		})
	}
	return events, nil
}

func wasOutside(status string) bool {
	return status == "left" || status == "kicked"
}

func isMember(status string) bool {
	return status == "member" || status == "administrator"
}
