// Package pubsub announces published runs on a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/JakeFAU/servicetags-publisher/internal/servicetags"
)

// Notifier publishes run summaries to a topic.
type Notifier struct {
	topic  *pubsub.Topic
	logger *zap.Logger
}

// New creates a Notifier for topicID on client.
func New(client *pubsub.Client, topicID string, logger *zap.Logger) (*Notifier, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client is required")
	}
	if topicID == "" {
		return nil, fmt.Errorf("topic id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{topic: client.Topic(topicID), logger: logger}, nil
}

// Notify marshals summary to JSON and publishes it with change_number and run_id attributes.
func (n *Notifier) Notify(ctx context.Context, summary servicetags.RunSummary) (string, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("marshal run summary: %w", err)
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"change_number": summary.ChangeNumber,
			"run_id":        summary.RunID,
		},
	}
	id, err := n.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish run summary: %w", err)
	}
	n.logger.Info("Published run notification", zap.String("message_id", id), zap.String("topic", n.topic.ID()))
	return id, nil
}

// Close flushes pending messages.
func (n *Notifier) Close() {
	n.topic.Stop()
}
