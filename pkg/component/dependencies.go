package component

import (
	"github.com/veesix-networks/osvrouter/pkg/config"
	"github.com/veesix-networks/osvrouter/pkg/events"
	"github.com/veesix-networks/osvrouter/pkg/ifmap"
	"github.com/veesix-networks/osvrouter/pkg/opdb"
	"github.com/veesix-networks/osvrouter/pkg/southbound"
)

type Dependencies struct {
	EventBus events.Bus
	Config   *config.Config
	Fastpath southbound.Southbound
	Mappings *ifmap.Table
	Store    opdb.Store
}
