// Package mirror subscribes to the kernel state events published by netmon
// and replays them onto the fast path for diverted interfaces.
package mirror

import (
	"context"
	"log/slog"

	"github.com/vishvananda/netlink"

	"github.com/veesix-networks/osvrouter/pkg/component"
	"github.com/veesix-networks/osvrouter/pkg/events"
	"github.com/veesix-networks/osvrouter/pkg/logger"
	"github.com/veesix-networks/osvrouter/pkg/mirror"
)

type Component struct {
	*component.Base

	logger   *slog.Logger
	eventBus events.Bus
	mirror   *mirror.Mirror

	subs []events.Subscription
}

func New(deps component.Dependencies) (*Component, error) {
	return &Component{
		Base:     component.NewBase("mirror"),
		logger:   logger.Component(logger.Mirror),
		eventBus: deps.EventBus,
		mirror:   mirror.New(deps.Mappings, deps.Fastpath),
	}, nil
}

func (c *Component) Start(ctx context.Context) error {
	c.StartContext(ctx)
	c.logger.Info("Starting mirror component")

	c.subs = append(c.subs,
		c.eventBus.Subscribe(events.TopicNetlinkAddr, c.onAddr),
		c.eventBus.Subscribe(events.TopicNetlinkRoute, c.onRoute),
		c.eventBus.Subscribe(events.TopicNetlinkLink, c.onLink),
	)
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	c.logger.Info("Stopping mirror component")
	for _, sub := range c.subs {
		sub.Unsubscribe()
	}
	c.StopContext()
	return nil
}

func (c *Component) onAddr(event events.Event) {
	update, ok := event.Data.(netlink.AddrUpdate)
	if !ok {
		return
	}
	c.mirror.HandleAddr(update)
}

func (c *Component) onRoute(event events.Event) {
	update, ok := event.Data.(netlink.RouteUpdate)
	if !ok {
		return
	}
	c.mirror.HandleRoute(update)
}

func (c *Component) onLink(event events.Event) {
	update, ok := event.Data.(netlink.LinkUpdate)
	if !ok {
		return
	}
	c.mirror.HandleLink(update)
}
