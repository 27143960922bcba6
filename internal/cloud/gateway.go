package cloud

// Gateway groups the per-kind resources that share one client cache.
type Gateway struct {
	Images    *Resource[Image]
	Flavours  *Resource[Flavour]
	Instances *InstanceResource

	clients *ClientCache
}

func NewGateway(clients *ClientCache) *Gateway {
	return &Gateway{
		Images:    NewResource[Image](clients, "images"),
		Flavours:  NewResource[Flavour](clients, "flavours"),
		Instances: NewInstanceResource(clients),
		clients:   clients,
	}
}

func (g *Gateway) Clients() *ClientCache {
	return g.clients
}
