package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/keyword-crawler/internal/crawler"
)

// Notification is the Pub/Sub payload announcing one keyword/category batch.
type Notification struct {
	RunID    string   `json:"run_id"`
	Keyword  string   `json:"keyword"`
	Category string   `json:"category"`
	Links    []string `json:"links"`
}

type messagePublisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
	Stop()
}

type topicPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

func (p *topicPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	result := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	id, err := result.Get(ctx)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *topicPublisher) Stop() {
	p.topic.Stop()
	_ = p.client.Close()
}

// PubSub publishes one notification per write.
type PubSub struct {
	publisher messagePublisher
}

// NewPubSub connects to the project and topic using Application Default Credentials.
func NewPubSub(ctx context.Context, projectID, topicID string) (*PubSub, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &PubSub{publisher: &topicPublisher{client: client, topic: client.Topic(topicID)}}, nil
}

// NewPubSubWithPublisher builds a sink around a custom publisher (tests).
func NewPubSubWithPublisher(publisher messagePublisher) *PubSub {
	return &PubSub{publisher: publisher}
}

// Write publishes a notification listing the batch links.
func (p *PubSub) Write(ctx context.Context, keyword, category string, results []crawler.Result) error {
	if len(results) == 0 {
		return nil
	}
	note := Notification{
		RunID:    results[0].RunID,
		Keyword:  keyword,
		Category: category,
		Links:    make([]string, 0, len(results)),
	}
	for _, r := range results {
		note.Links = append(note.Links, r.Link)
	}
	data, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	attrs := map[string]string{"keyword": keyword, "category": category}
	if _, err := p.publisher.Publish(ctx, data, attrs); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close flushes pending messages and releases the client.
func (p *PubSub) Close() error {
	p.publisher.Stop()
	return nil
}
