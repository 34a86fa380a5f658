// Package netmon owns the process-wide rtnetlink subscription. Kernel
// address, route and link updates are published onto the event bus; the
// subscription is opened lazily the first time a diversion needs it and
// stays open for the life of the process.
package netmon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vishvananda/netlink"

	"github.com/veesix-networks/osvrouter/pkg/component"
	"github.com/veesix-networks/osvrouter/pkg/events"
	"github.com/veesix-networks/osvrouter/pkg/logger"
)

type Component struct {
	*component.Base

	logger   *slog.Logger
	eventBus events.Bus

	mu         sync.Mutex
	subscribed bool
	done       chan struct{}
}

func New(deps component.Dependencies) (*Component, error) {
	return &Component{
		Base:     component.NewBase("netmon"),
		logger:   logger.Component(logger.NetMon),
		eventBus: deps.EventBus,
	}, nil
}

func (c *Component) Start(ctx context.Context) error {
	c.StartContext(ctx)
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	c.logger.Info("Stopping netmon component")
	c.mu.Lock()
	if c.done != nil {
		close(c.done)
		c.done = nil
		c.subscribed = false
	}
	c.mu.Unlock()
	c.StopContext()
	return nil
}

// EnsureSubscribed opens the netlink subscription if it is not open yet.
// Safe to call from any goroutine; only the first caller pays the cost.
func (c *Component) EnsureSubscribed() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subscribed {
		return nil
	}

	done := make(chan struct{})

	addrCh := make(chan netlink.AddrUpdate, 64)
	if err := netlink.AddrSubscribe(addrCh, done); err != nil {
		close(done)
		return fmt.Errorf("subscribe to address updates: %w", err)
	}
	routeCh := make(chan netlink.RouteUpdate, 256)
	if err := netlink.RouteSubscribe(routeCh, done); err != nil {
		close(done)
		return fmt.Errorf("subscribe to route updates: %w", err)
	}
	linkCh := make(chan netlink.LinkUpdate, 64)
	if err := netlink.LinkSubscribe(linkCh, done); err != nil {
		close(done)
		return fmt.Errorf("subscribe to link updates: %w", err)
	}

	c.done = done
	c.subscribed = true
	c.logger.Info("netlink subscription opened")

	c.Go(func() { c.pumpAddrs(addrCh) })
	c.Go(func() { c.pumpRoutes(routeCh) })
	c.Go(func() { c.pumpLinks(linkCh) })
	return nil
}

func (c *Component) pumpAddrs(ch <-chan netlink.AddrUpdate) {
	for {
		select {
		case <-c.Ctx.Done():
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			c.publish(events.TopicNetlinkAddr, update)
		}
	}
}

func (c *Component) pumpRoutes(ch <-chan netlink.RouteUpdate) {
	for {
		select {
		case <-c.Ctx.Done():
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			c.publish(events.TopicNetlinkRoute, update)
		}
	}
}

func (c *Component) pumpLinks(ch <-chan netlink.LinkUpdate) {
	for {
		select {
		case <-c.Ctx.Done():
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			c.publish(events.TopicNetlinkLink, update)
		}
	}
}

func (c *Component) publish(topic string, data any) {
	c.eventBus.Publish(topic, events.Event{
		ID:        uuid.New().String(),
		Type:      topic,
		Timestamp: time.Now(),
		Source:    "netmon",
		Data:      data,
	})
}
