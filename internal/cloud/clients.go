package cloud

import (
	"sync"
	"time"

	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
	"github.com/go-resty/resty/v2"
)

// ClientCache hands out one reusable HTTP client per provider.
type ClientCache struct {
	mu      sync.Mutex
	clients map[uint]*resty.Client
	timeout time.Duration
}

func NewClientCache(timeout time.Duration) *ClientCache {
	return &ClientCache{
		clients: make(map[uint]*resty.Client),
		timeout: timeout,
	}
}

// ClientFor returns the client bound to provider's URL, creating it on first
// use. Retries are disabled: instance mutations must never be reissued.
func (c *ClientCache) ClientFor(provider model.Provider) *resty.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[provider.ID]; ok {
		return client
	}

	client := resty.New().
		SetBaseURL(provider.URL).
		SetTimeout(c.timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	c.clients[provider.ID] = client
	return client
}

// Forget drops the provider's client so the next call rebinds to its
// current URL.
func (c *ClientCache) Forget(providerID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clients, providerID)
}

func (c *ClientCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}
