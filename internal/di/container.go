package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/raulos/kiosk-api/internal/platform/config"
	"github.com/raulos/kiosk-api/internal/platform/events"
	pfirestore "github.com/raulos/kiosk-api/internal/platform/firestore"
	firestoreRepo "github.com/raulos/kiosk-api/internal/repositories/firestore"
	"github.com/raulos/kiosk-api/internal/services"
)

// Services bundles the service-layer contracts handlers rely upon.
type Services struct {
	Catalog services.CatalogService
	Orders  services.OrderService
}

// Container wires repositories, services, and messaging for runtime use.
type Container struct {
	Config    config.Config
	Provider  *pfirestore.Provider
	Services  Services
	Publisher services.OrderEventPublisher

	pubsubClient *pubsub.Client
	pubsubTopic  *pubsub.Topic
}

// ContainerOption customises container construction.
type ContainerOption func(*containerOptions)

type containerOptions struct {
	publisher services.OrderEventPublisher
	clock     func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// WithEventPublisher injects a pre-built publisher, bypassing Pub/Sub setup.
func WithEventPublisher(publisher services.OrderEventPublisher) ContainerOption {
	return func(o *containerOptions) {
		o.publisher = publisher
	}
}

// WithClock overrides the time source used by services.
func WithClock(clock func() time.Time) ContainerOption {
	return func(o *containerOptions) {
		o.clock = clock
	}
}

// WithServiceLogger sets the structured event logger passed to services.
func WithServiceLogger(logger func(ctx context.Context, event string, fields map[string]any)) ContainerOption {
	return func(o *containerOptions) {
		o.logger = logger
	}
}

// NewContainer constructs the runtime dependency graph.
func NewContainer(ctx context.Context, cfg config.Config, opts ...ContainerOption) (*Container, error) {
	if ctx == nil {
		return nil, errors.New("container requires context")
	}

	options := containerOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	container := &Container{
		Config:   cfg,
		Provider: pfirestore.NewProvider(cfg.Firestore),
	}

	catalogRepo, err := firestoreRepo.NewCatalogRepository(container.Provider)
	if err != nil {
		return nil, fmt.Errorf("build catalog repository: %w", err)
	}
	orderRepo, err := firestoreRepo.NewOrderRepository(container.Provider)
	if err != nil {
		return nil, fmt.Errorf("build order repository: %w", err)
	}

	publisher := options.publisher
	if publisher == nil {
		if topicID := strings.TrimSpace(cfg.Events.OrderTopic); topicID != "" {
			client, err := pubsub.NewClient(ctx, cfg.Firestore.ProjectID)
			if err != nil {
				return nil, fmt.Errorf("build pubsub client: %w", err)
			}
			topic := client.Topic(topicID)
			psPublisher, err := events.NewPubSubOrderPublisher(topic)
			if err != nil {
				_ = client.Close()
				return nil, fmt.Errorf("build order publisher: %w", err)
			}
			container.pubsubClient = client
			container.pubsubTopic = topic
			publisher = psPublisher
		}
	}
	container.Publisher = publisher

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Catalog: catalogRepo,
	})
	if err != nil {
		return nil, fmt.Errorf("build catalog service: %w", err)
	}

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Catalog:   catalogRepo,
		Orders:    orderRepo,
		Publisher: publisher,
		Config:    cfg.Orders,
		Clock:     options.clock,
		Logger:    options.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build order service: %w", err)
	}

	container.Services = Services{
		Catalog: catalogSvc,
		Orders:  orderSvc,
	}
	return container, nil
}

// ReadinessCheck probes Firestore connectivity for /readyz.
func (c *Container) ReadinessCheck(ctx context.Context) error {
	if c == nil || c.Provider == nil {
		return errors.New("firestore provider not initialised")
	}
	_, err := c.Provider.Client(ctx)
	return err
}

// Close releases messaging and storage clients.
func (c *Container) Close() error {
	if c == nil {
		return nil
	}

	var errs []error
	if c.pubsubTopic != nil {
		c.pubsubTopic.Stop()
	}
	if c.pubsubClient != nil {
		if err := c.pubsubClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pubsub client: %w", err))
		}
	}
	if c.Provider != nil {
		if err := c.Provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close firestore provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
