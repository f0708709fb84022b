package subway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
)

// Mux is a `Handler` dispatching requests on their method and pathname.
type Mux struct {
	lk sync.RWMutex
	// pathname -> lowercase method ("" for any) -> handler.
	routes   map[string]map[string]Handler
	notFound Handler
}

func NewMux() *Mux {
	return &Mux{
		routes: make(map[string]map[string]Handler),
	}
}

// Handle registers `handler` for `pathname`. An empty method matches any
// method without a more specific handler.
func (mux *Mux) Handle(method, pathname string, handler Handler) {
	mux.lk.Lock()
	defer mux.lk.Unlock()
	methods, has := mux.routes[pathname]
	if !has {
		methods = make(map[string]Handler)
		mux.routes[pathname] = methods
	}
	methods[strings.ToLower(method)] = handler
}

// HandleJSON registers a handler decoding the request body into a `In`
// and encoding its result with status 200.
func HandleJSON[In, Out any](mux *Mux, method, pathname string, fn func(ctx context.Context, in In) (Out, error)) {
	mux.Handle(method, pathname, func(ctx context.Context, req *Request, _ *Envelope) (*Response, error) {
		var in In
		if len(req.Body) > 0 {
			if err := json.Unmarshal(req.Body, &in); err != nil {
				return NewJSONResponse(http.StatusBadRequest, errorBody{Error: err.Error()})
			}
		}
		out, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}
		return NewJSONResponse(http.StatusOK, out)
	})
}

// NotFound replaces the handler of unknown pathnames.
func (mux *Mux) NotFound(handler Handler) {
	mux.lk.Lock()
	defer mux.lk.Unlock()
	mux.notFound = handler
}

// Ping is the body of heartbeat requests.
type Ping struct {
	PeerID string `json:"peerId"`
}

// HandlePing answers heartbeats. `onPing`, if non-nil, is told about
// every ping received.
func (mux *Mux) HandlePing(onPing func(ctx context.Context, ping Ping)) {
	HandleJSON(mux, MethodPost, PathPing, func(ctx context.Context, ping Ping) (Ping, error) {
		if onPing != nil {
			onPing(ctx, ping)
		}
		return ping, nil
	})
}

// Routes returns the registered pathnames, sorted.
func (mux *Mux) Routes() []string {
	mux.lk.RLock()
	defer mux.lk.RUnlock()
	pathnames := make([]string, 0, len(mux.routes))
	for pathname := range mux.routes {
		pathnames = append(pathnames, pathname)
	}
	slices.Sort(pathnames)
	return pathnames
}

// Serve implements `Handler`.
func (mux *Mux) Serve(ctx context.Context, req *Request, env *Envelope) (*Response, error) {
	mux.lk.RLock()
	methods, has := mux.routes[req.Pathname]
	var handler Handler
	if has {
		handler = methods[strings.ToLower(req.Method)]
		if handler == nil {
			handler = methods[""]
		}
	}
	notFound := mux.notFound
	mux.lk.RUnlock()

	switch {
	case handler != nil:
		return handler(ctx, req, env)
	case has:
		return NewJSONResponse(http.StatusMethodNotAllowed, errorBody{
			Error: fmt.Sprintf("method %s not allowed on %s", req.Method, req.Pathname),
		})
	case notFound != nil:
		return notFound(ctx, req, env)
	default:
		return NewJSONResponse(http.StatusNotFound, errorBody{
			Error: fmt.Sprintf("no route for %s", req.Pathname),
		})
	}
}
