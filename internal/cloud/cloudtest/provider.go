// Package cloudtest provides an in-process cloud provider for tests.
package cloudtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dcm-project/cloud-instance-manager/internal/cloud"
	"github.com/go-chi/chi/v5"
)

// Provider serves the provider HTTP API from memory and counts the requests
// it receives per route.
type Provider struct {
	Server *httptest.Server

	mu        sync.Mutex
	images    map[int]cloud.Image
	flavours  map[int]cloud.Flavour
	instances map[int]cloud.Instance
	nextID    int
	hits      map[string]int
	failWith  int
	failPaths map[string]int
	raw       *rawReply
	latency   time.Duration
}

type rawReply struct {
	contentType string
	body        string
}

func NewProvider() *Provider {
	p := &Provider{
		images:    make(map[int]cloud.Image),
		flavours:  make(map[int]cloud.Flavour),
		instances: make(map[int]cloud.Instance),
		nextID:    1000,
		hits:      make(map[string]int),
		failPaths: make(map[string]int),
	}

	router := chi.NewRouter()
	router.Use(p.countAndFail)
	router.Get("/images", p.listImages)
	router.Get("/images/{id}", p.getImage)
	router.Get("/flavours", p.listFlavours)
	router.Get("/flavours/{id}", p.getFlavour)
	router.Get("/instances", p.listInstances)
	router.Post("/instances", p.createInstance)
	router.Get("/instances/{id}", p.getInstance)
	router.Put("/instances/{id}", p.updateInstance)
	router.Delete("/instances/{id}", p.deleteInstance)
	router.Get("/instances/{id}/state", p.getState)
	router.Post("/instances/{id}/actions", p.executeAction)

	p.Server = httptest.NewServer(router)
	return p
}

func (p *Provider) URL() string {
	return p.Server.URL
}

func (p *Provider) Close() {
	p.Server.Close()
}

func (p *Provider) AddImage(image cloud.Image) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.images[image.ID] = image
}

func (p *Provider) AddFlavour(flavour cloud.Flavour) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flavours[flavour.ID] = flavour
}

func (p *Provider) AddInstance(instance cloud.Instance) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instances[instance.ID] = instance
}

// RemoveInstance deletes an instance behind the caller's back, as if it
// vanished upstream.
func (p *Provider) RemoveInstance(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.instances, id)
}

func (p *Provider) Instance(id int) (cloud.Instance, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	instance, ok := p.instances[id]
	return instance, ok
}

// FailWith makes every subsequent request answer status. Zero restores
// normal behaviour.
func (p *Provider) FailWith(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failWith = status
}

// Hits returns how many requests matched "METHOD /route/{pattern}".
func (p *Provider) Hits(method, pattern string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits[method+" "+pattern]
}

func (p *Provider) TotalHits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.hits {
		total += n
	}
	return total
}

// FailPathWith makes requests whose path starts with prefix answer status,
// leaving the other routes working.
func (p *Provider) FailPathWith(prefix string, status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failPaths[prefix] = status
}

// ReplyRaw makes every subsequent request answer 200 with body served as
// contentType, e.g. a proxy's HTML maintenance page.
func (p *Provider) ReplyRaw(contentType, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.raw = &rawReply{contentType: contentType, body: body}
}

// SetLatency delays every subsequent response by d.
func (p *Provider) SetLatency(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latency = d
}

func (p *Provider) countAndFail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		status, raw, latency := p.failWith, p.raw, p.latency
		for prefix, code := range p.failPaths {
			if status == 0 && strings.HasPrefix(r.URL.Path, prefix) {
				status = code
			}
		}
		p.mu.Unlock()
		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			p.record(r.Method, r.URL.Path)
			w.WriteHeader(status)
			return
		}
		if raw != nil {
			p.record(r.Method, r.URL.Path)
			w.Header().Set("Content-Type", raw.contentType)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(raw.body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *Provider) hit(r *http.Request) {
	p.record(r.Method, chi.RouteContext(r.Context()).RoutePattern())
}

func (p *Provider) record(method, pattern string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hits[method+" "+pattern]++
}

func (p *Provider) listImages(w http.ResponseWriter, r *http.Request) {
	p.hit(r)
	p.mu.Lock()
	images := sortedValues(p.images)
	p.mu.Unlock()
	writeJSON(w, http.StatusOK, images)
}

func (p *Provider) getImage(w http.ResponseWriter, r *http.Request) {
	p.hit(r)
	p.mu.Lock()
	image, ok := p.images[pathID(r)]
	p.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, image)
}

func (p *Provider) listFlavours(w http.ResponseWriter, r *http.Request) {
	p.hit(r)
	p.mu.Lock()
	flavours := sortedValues(p.flavours)
	p.mu.Unlock()
	writeJSON(w, http.StatusOK, flavours)
}

func (p *Provider) getFlavour(w http.ResponseWriter, r *http.Request) {
	p.hit(r)
	p.mu.Lock()
	flavour, ok := p.flavours[pathID(r)]
	p.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, flavour)
}

func (p *Provider) listInstances(w http.ResponseWriter, r *http.Request) {
	p.hit(r)
	p.mu.Lock()
	instances := sortedValues(p.instances)
	p.mu.Unlock()
	writeJSON(w, http.StatusOK, instances)
}

func (p *Provider) getInstance(w http.ResponseWriter, r *http.Request) {
	p.hit(r)
	p.mu.Lock()
	instance, ok := p.instances[pathID(r)]
	p.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, instance)
}

func (p *Provider) createInstance(w http.ResponseWriter, r *http.Request) {
	p.hit(r)
	var creator cloud.InstanceCreator
	if err := json.NewDecoder(r.Body).Decode(&creator); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	image, imageOK := p.images[creator.ImageID]
	flavour, flavourOK := p.flavours[creator.FlavourID]
	if !imageOK || !flavourOK {
		p.mu.Unlock()
		http.Error(w, "unknown image or flavour", http.StatusBadRequest)
		return
	}
	p.nextID++
	account := creator.Account
	instance := cloud.Instance{
		ID:          p.nextID,
		Name:        creator.Name,
		Description: creator.Description,
		Hostname:    fmt.Sprintf("instance-%d.cloud.test", p.nextID),
		ComputeID:   fmt.Sprintf("compute-%d", p.nextID),
		Status:      "BUILDING",
		Protocols:   image.Protocols,
		Image:       &image,
		Flavour:     &flavour,
		Account:     &account,
	}
	p.instances[instance.ID] = instance
	p.mu.Unlock()

	writeJSON(w, http.StatusCreated, instance)
}

func (p *Provider) updateInstance(w http.ResponseWriter, r *http.Request) {
	p.hit(r)
	var updator cloud.InstanceUpdator
	if err := json.NewDecoder(r.Body).Decode(&updator); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	instance, ok := p.instances[pathID(r)]
	if ok {
		instance.Name = updator.Name
		instance.Description = updator.Description
		p.instances[instance.ID] = instance
	}
	p.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, instance)
}

func (p *Provider) deleteInstance(w http.ResponseWriter, r *http.Request) {
	p.hit(r)
	p.mu.Lock()
	_, ok := p.instances[pathID(r)]
	delete(p.instances, pathID(r))
	p.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (p *Provider) getState(w http.ResponseWriter, r *http.Request) {
	p.hit(r)
	p.mu.Lock()
	instance, ok := p.instances[pathID(r)]
	p.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, instance.State())
}

func (p *Provider) executeAction(w http.ResponseWriter, r *http.Request) {
	p.hit(r)
	var command cloud.Command
	if err := json.NewDecoder(r.Body).Decode(&command); err != nil || !command.Type.IsValid() {
		http.Error(w, "invalid command", http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	instance, ok := p.instances[pathID(r)]
	if ok {
		instance.Status = transitions[command.Type]
		p.instances[instance.ID] = instance
	}
	p.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, instance)
}

var transitions = map[cloud.CommandType]string{
	cloud.CommandStart:    "STARTING",
	cloud.CommandShutdown: "STOPPING",
	cloud.CommandReboot:   "REBOOTING",
}

func pathID(r *http.Request) int {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	return id
}

func sortedValues[T any](m map[int]T) []T {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	values := make([]T, 0, len(keys))
	for _, k := range keys {
		values = append(values, m[k])
	}
	return values
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
