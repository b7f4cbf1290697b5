package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/pariwager/internal/application/gossip"
	"github.com/alejandrodnm/pariwager/internal/domain"
)

// flakyGossip falla los primeros fail posts; stored indica si el servidor
// guarda el mensaje aunque la respuesta no llegue.
type flakyGossip struct {
	mu     sync.Mutex
	fail   int
	stored bool
	server []domain.GossipMessage
	posts  int
}

func (f *flakyGossip) FetchGossip(context.Context, string) ([]domain.GossipMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.GossipMessage(nil), f.server...), nil
}

func (f *flakyGossip) PostGossip(_ context.Context, eventID, body string, replyTo *int64) (domain.GossipMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts++
	m := domain.GossipMessage{ID: int64(f.posts), EventID: eventID, Author: domain.Author{ID: "u-me"}, Body: body, ReplyTo: replyTo}
	if f.fail > 0 {
		f.fail--
		if f.stored {
			f.server = append(f.server, m)
		}
		return domain.GossipMessage{}, fmt.Errorf("%w: timeout", domain.ErrNetwork)
	}
	f.server = append(f.server, m)
	return m, nil
}

func sendFailing(t *testing.T, api *flakyGossip) (*gossip.Reconciler, string) {
	t.Helper()
	rec := gossip.New(api, nil, "evt-1", domain.Author{ID: "u-me"})
	msg, err := rec.Send(context.Background(), "see you at close", nil)
	require.Error(t, err)
	return rec, msg.LocalID
}

func TestRetryPrompt(t *testing.T) {
	tests := []struct {
		name      string
		fail      int
		stored    bool
		input     string
		wantErr   bool
		wantPosts int
		wantOut   string
	}{
		{"retry delivers", 1, false, "y\n", false, 2, "Delivered."},
		{"declined", 1, false, "n\n", true, 1, "Retry?"},
		{"no input", 1, false, "", true, 1, "Retry?"},
		{"second retry delivers", 2, false, "y\nyes\n", false, 3, "Delivered."},
		{"already on server", 1, true, "y\n", false, 1, "already on the server"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &flakyGossip{fail: tt.fail, stored: tt.stored}
			rec, localID := sendFailing(t, api)

			var out bytes.Buffer
			err := retryPrompt(context.Background(), rec, localID, bufio.NewReader(strings.NewReader(tt.input)), &out)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Len(t, rec.Failed(), 1)
			} else {
				require.NoError(t, err)
				assert.Empty(t, rec.Failed())
				require.Len(t, rec.Thread(), 1)
			}
			assert.Equal(t, tt.wantPosts, api.posts)
			assert.Contains(t, out.String(), tt.wantOut)
		})
	}
}
