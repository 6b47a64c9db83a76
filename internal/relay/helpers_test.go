package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/deskrelay/deskrelay/internal/graph"
)

// fakeGateway is a scriptable Gateway for tests.
type fakeGateway struct {
	mu sync.Mutex

	chat       graph.Chat
	chatErr    error
	messageID  string
	sendErr    error
	messages   map[string]graph.ChatMessage
	fetchErr   error
	subID      string
	subErr     error
	sentBodies []graph.ItemBody

	createChatCalls   int
	subscriptionCalls int
}

var errFakeGateway = errors.New("gateway unavailable")

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		chat:      graph.Chat{ID: "chat-1", WebURL: "https://teams.example.com/chat-1"},
		messageID: "initial-1",
		subID:     "sub-1",
		messages:  map[string]graph.ChatMessage{},
	}
}

func (g *fakeGateway) CreateChat(_ context.Context, _ []string, _ string) (graph.Chat, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createChatCalls++
	if g.chatErr != nil {
		return graph.Chat{}, g.chatErr
	}
	return g.chat, nil
}

func (g *fakeGateway) SendMessage(_ context.Context, _ string, body graph.ItemBody) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return "", g.sendErr
	}
	g.sentBodies = append(g.sentBodies, body)
	return g.messageID, nil
}

func (g *fakeGateway) GetMessage(_ context.Context, _ string, messageID string) (graph.ChatMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return graph.ChatMessage{}, g.fetchErr
	}
	msg, ok := g.messages[messageID]
	if !ok {
		return graph.ChatMessage{}, errFakeGateway
	}
	return msg, nil
}

func (g *fakeGateway) CreateSubscription(_ context.Context, _, _, _ string, _ time.Duration) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscriptionCalls++
	if g.subErr != nil {
		return "", g.subErr
	}
	return g.subID, nil
}

func (g *fakeGateway) sent() []graph.ItemBody {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]graph.ItemBody, len(g.sentBodies))
	copy(out, g.sentBodies)
	return out
}

// fakeBroadcaster records broadcasts.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []broadcastRecord
}

type broadcastRecord struct {
	requestID string
	event     string
	payload   any
}

func (b *fakeBroadcaster) Broadcast(requestID, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastRecord{requestID: requestID, event: event, payload: payload})
}

func (b *fakeBroadcaster) recorded() []broadcastRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]broadcastRecord, len(b.events))
	copy(out, b.events)
	return out
}

func agentMessage(id, sender, contentType, content string) graph.ChatMessage {
	return graph.ChatMessage{
		ID:   id,
		Body: graph.ItemBody{ContentType: contentType, Content: content},
		From: graph.ChatMessageFrom{User: graph.ChatMessageUser{DisplayName: sender}},
	}
}
