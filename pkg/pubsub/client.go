// Package pubsub publishes storefront events to Google Cloud Pub/Sub with
// per-aggregate message ordering.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	gpubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Message is one outbound event.
type Message struct {
	Data        []byte
	OrderingKey string
	Attributes  map[string]string
}

type publisher interface {
	publish(ctx context.Context, msg *gpubsub.Message) (ack func(context.Context) (string, error))
	resume(orderingKey string)
	stop()
}

type gcpPublisher struct{ p *gpubsub.Publisher }

func (g gcpPublisher) publish(ctx context.Context, msg *gpubsub.Message) func(context.Context) (string, error) {
	return g.p.Publish(ctx, msg).Get
}

func (g gcpPublisher) resume(key string) { g.p.ResumePublish(key) }
func (g gcpPublisher) stop()             { g.p.Stop() }

type Client struct {
	gcp       *gpubsub.Client
	projectID string
	topics    []string
	open      func(resource string) publisher

	mu         sync.Mutex
	publishers map[string]publisher
}

// NewClient connects and fails fast when a configured topic is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errors.New("pubsub: gcp project id required")
	}
	topics := topicNames(cfg)
	if len(topics) == 0 {
		return nil, errors.New("pubsub: no topics configured")
	}
	conn, err := gpubsub.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("pubsub connect: %w", err)
	}
	c := &Client{
		gcp:        conn,
		projectID:  project,
		topics:     topics,
		publishers: map[string]publisher{},
	}
	c.open = func(resource string) publisher {
		p := conn.Publisher(resource)
		p.EnableMessageOrdering = true
		return gcpPublisher{p: p}
	}
	if err := c.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("pubsub ready project=%s topics=%v", project, topics))
	}
	return c, nil
}

// Ping checks that every configured topic exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.gcp == nil {
		return errors.New("pubsub: client not connected")
	}
	for _, name := range c.topics {
		_, err := c.gcp.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topicResourceName(c.projectID, name)})
		switch {
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("pubsub: topic %q does not exist", name)
		case err != nil:
			return fmt.Errorf("pubsub: topic %q: %w", name, err)
		}
	}
	return nil
}

// Send publishes msg and waits for the server ack. A failed ordered publish
// pauses its key, so the key is resumed before returning the error.
func (c *Client) Send(ctx context.Context, topic string, msg Message) error {
	pub, err := c.publisher(topic)
	if err != nil {
		return err
	}
	ack := pub.publish(ctx, &gpubsub.Message{
		Data:        msg.Data,
		OrderingKey: msg.OrderingKey,
		Attributes:  msg.Attributes,
	})
	if _, err := ack(ctx); err != nil {
		if msg.OrderingKey != "" {
			pub.resume(msg.OrderingKey)
		}
		return fmt.Errorf("pubsub publish %s: %w", topic, err)
	}
	return nil
}

func (c *Client) publisher(topic string) (publisher, error) {
	resource := topicResourceName(c.projectID, topic)
	if resource == "" {
		return nil, fmt.Errorf("pubsub: topic %q not resolvable", topic)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	pub, ok := c.publishers[resource]
	if !ok {
		pub = c.open(resource)
		c.publishers[resource] = pub
	}
	return pub, nil
}

// Close flushes pending publishes before closing the connection.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	for resource, pub := range c.publishers {
		pub.stop()
		delete(c.publishers, resource)
	}
	c.mu.Unlock()
	if c.gcp == nil {
		return nil
	}
	return c.gcp.Close()
}

func topicNames(cfg config.PubSubConfig) []string {
	var names []string
	for _, name := range []string{cfg.OrdersTopic, cfg.PaymentsTopic} {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	if file := strings.TrimSpace(gcp.ApplicationCredentials); file != "" {
		return []option.ClientOption{option.WithCredentialsFile(file)}
	}
	return nil
}

// topicResourceName expands a short topic name; full resource names pass
// through unchanged.
func topicResourceName(projectID, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/topics/"):
		return name
	case strings.TrimSpace(projectID) == "":
		return ""
	}
	return "projects/" + strings.TrimSpace(projectID) + "/topics/" + name
}
