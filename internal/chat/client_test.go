package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testChatID = int64(-100123)

func TestCreateInvite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/createChatInviteLink", r.URL.Path)

		var params map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, float64(testChatID), params["chat_id"])
		assert.Equal(t, float64(1), params["member_limit"])
		assert.NotZero(t, params["expire_date"])

		fmt.Fprint(w, `{"ok":true,"result":{"invite_link":"https://chat.example/+secret"}}`)
	}))
	defer srv.Close()

	c := NewBotClient(srv.URL, "TOKEN", testChatID, zap.NewNop())
	link, err := c.CreateInvite(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example/+secret", link)
}

func TestCreateInviteAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok":false,"description":"chat not found"}`)
	}))
	defer srv.Close()

	c := NewBotClient(srv.URL, "TOKEN", testChatID, zap.NewNop())
	_, err := c.CreateInvite(context.Background(), 10*time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func pollBody(updates ...string) string {
	return fmt.Sprintf(`{"ok":true,"result":[%s]}`, strings.Join(updates, ","))
}

func memberUpdate(updateID int64, chatID, userID int64, oldStatus, newStatus string) string {
	return fmt.Sprintf(`{
		"update_id": %d,
		"chat_member": {
			"chat": {"id": %d},
			"date": %d,
			"old_chat_member": {"status": %q},
			"new_chat_member": {"status": %q, "user": {"id": %d, "username": "u%d", "first_name": "User"}}
		}
	}`, updateID, chatID, time.Now().Unix(), oldStatus, newStatus, userID, userID)
}

func TestPollJoinsFiltersTransitions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/getUpdates", r.URL.Path)
		fmt.Fprint(w, pollBody(
			memberUpdate(10, testChatID, 1, "left", "member"),          // join
			memberUpdate(11, testChatID, 2, "member", "left"),          // leave, skip
			memberUpdate(12, 555, 3, "left", "member"),                 // other chat, skip
			memberUpdate(13, testChatID, 4, "kicked", "administrator"), // join
			memberUpdate(14, testChatID, 5, "member", "administrator"), // promotion, skip
		))
	}))
	defer srv.Close()

	c := NewBotClient(srv.URL, "TOKEN", testChatID, zap.NewNop())
	events, err := c.PollJoins(context.Background())
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, int64(1), events[0].ExternalID)
	assert.Equal(t, "u1", events[0].Username)
	assert.Equal(t, "User", events[0].DisplayName)
	assert.Equal(t, int64(4), events[1].ExternalID)
}

func TestPollJoinsAdvancesOffset(t *testing.T) {
	var mu sync.Mutex
	var offsets []float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		mu.Lock()
		offsets = append(offsets, params["offset"].(float64))
		first := len(offsets) == 1
		mu.Unlock()
		if first {
			fmt.Fprint(w, pollBody(memberUpdate(42, testChatID, 1, "left", "member")))
			return
		}
		fmt.Fprint(w, pollBody())
	}))
	defer srv.Close()

	c := NewBotClient(srv.URL, "TOKEN", testChatID, zap.NewNop())
	_, err := c.PollJoins(context.Background())
	require.NoError(t, err)
	_, err = c.PollJoins(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, offsets, 2)
	assert.Equal(t, float64(0), offsets[0])
	assert.Equal(t, float64(43), offsets[1], "offset must move past consumed updates")
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/getMe", r.URL.Path)
		fmt.Fprint(w, `{"ok":true,"result":{"username":"gatebot"}}`)
	}))
	defer srv.Close()

	c := NewBotClient(srv.URL, "TOKEN", testChatID, zap.NewNop())
	assert.NoError(t, c.Ping(context.Background()))
}

func TestPingBadCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"ok":false,"description":"unauthorized"}`)
	}))
	defer srv.Close()

	c := NewBotClient(srv.URL, "TOKEN", testChatID, zap.NewNop())
	assert.Error(t, c.Ping(context.Background()))
}
