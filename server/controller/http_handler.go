package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"

	"pubsub/broker"
	"pubsub/types/api/request"
	"pubsub/types/api/response"
)

const (
	rootPath    = "/"
	topicsPath  = "/topics"
	healthPath  = "/health"
	socketPath  = "/ws"
	maxBodySize = 1 << 20 // 1 MB
)

var errEmptyName = errors.New("topic name is empty")

// API handles the administrative HTTP requests.
type API struct {
	broker broker.Service
	routes map[string]map[string]http.HandlerFunc
	logger *slog.Logger
	debug  bool
}

// NewAPI creates a new instance of API.
func NewAPI(b broker.Service, logger *slog.Logger, isDebug bool) *API {
	c := &API{
		broker: b,
		logger: logger,
		debug:  isDebug,
	}
	c.routes = map[string]map[string]http.HandlerFunc{
		rootPath: {
			http.MethodGet: c.handleRoot,
		},
		topicsPath: {
			http.MethodGet:  c.handleListTopics,
			http.MethodPost: c.handleCreateTopic,
		},
		healthPath: {
			http.MethodGet: c.handleHealth,
		},
	}
	return c
}

// Routes returns the methods served on each path, sorted.
func (c *API) Routes() map[string][]string {
	routes := make(map[string][]string, len(c.routes))
	for path, handlers := range c.routes {
		routes[path] = slices.Sorted(maps.Keys(handlers))
	}
	return routes
}

// ServeHTTP handles HTTP requests.
func (c *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handlers, ok := c.routes[r.URL.Path]
	if !ok {
		c.Error(w, fmt.Errorf("wrong path"), http.StatusNotFound)
		return
	}
	handle, ok := handlers[r.Method]
	if !ok {
		w.Header().Set("Allow", strings.Join(slices.Sorted(maps.Keys(handlers)), ", "))
		c.Error(w, fmt.Errorf("method %s not allowed", r.Method), http.StatusMethodNotAllowed)
		return
	}
	handle(w, r)
}

func (c *API) handleRoot(w http.ResponseWriter, _ *http.Request) {
	c.write(w, http.StatusOK, response.Endpoints{
		Endpoints: []string{topicsPath, healthPath, socketPath},
	})
}

func (c *API) handleCreateTopic(w http.ResponseWriter, r *http.Request) {
	req, err := parse(w, r)
	if err != nil {
		c.Error(w, err, http.StatusBadRequest)
		return
	}

	if !c.broker.CreateTopic(req.Name) {
		c.Error(w, fmt.Errorf("topic %s already exists", req.Name), http.StatusConflict)
		return
	}
	c.write(w, http.StatusCreated, response.Created{
		Status: "created",
		Topic:  req.Name,
	})
}

func (c *API) handleListTopics(w http.ResponseWriter, _ *http.Request) {
	infos := c.broker.Topics()
	res := response.Topics{Topics: make([]response.Topic, 0, len(infos))}
	for _, info := range infos {
		res.Topics = append(res.Topics, response.Topic{
			Name:        info.Name,
			Subscribers: info.Subscribers,
			Messages:    info.Messages,
			Dropped:     info.Dropped,
		})
	}
	c.write(w, http.StatusOK, res)
}

func (c *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := c.broker.Stats()
	c.write(w, http.StatusOK, response.Health{
		Topics:      stats.Topics,
		Subscribers: stats.Subscribers,
		Sessions:    c.broker.SessionCount(),
	})
}

func parse(w http.ResponseWriter, r *http.Request) (request.CreateTopic, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer func() {
		_ = r.Body.Close()
	}()

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return request.CreateTopic{}, fmt.Errorf("failed to read body: %w", err)
	}

	req := request.CreateTopic{}
	if err = json.Unmarshal(data, &req); err != nil {
		return request.CreateTopic{}, fmt.Errorf("failed to parse body: %w", err)
	}
	if req.Name == "" {
		return request.CreateTopic{}, errEmptyName
	}

	return req, nil
}

// Error writes the status text, or the error itself in debug mode.
func (c *API) Error(w http.ResponseWriter, err error, statusCode int) {
	if !c.debug {
		http.Error(w, http.StatusText(statusCode), statusCode)
		return
	}
	c.logger.Debug("request failed", "status", statusCode, "error", err)
	http.Error(w, err.Error(), statusCode)
}

func (c *API) write(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		c.logger.Warn("failed to write response", "error", err)
	}
}
