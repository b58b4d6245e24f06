package router

import (
	"net/http"
	"path"
	"strings"

	"github.com/delivery/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// RouteRegistrar mounts its routes on the API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

type publicLister interface {
	publicRoutes(base string) []middleware.PublicRoute
}

// Router mounts registrars under /api/<version> with shared middleware
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
	middleware []gin.HandlerFunc
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion sets the version segment of the base path
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.apiVersion = version }
}

// WithMiddleware adds handlers that run before every API route
func WithMiddleware(mw ...gin.HandlerFunc) RouterOption {
	return func(r *Router) { r.Use(mw...) }
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register queues registrars for Setup
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrars...)
	return r
}

// Use adds API middleware. Handlers added after Setup are ignored.
func (r *Router) Use(mw ...gin.HandlerFunc) *Router {
	r.middleware = append(r.middleware, mw...)
	return r
}

func (r *Router) BasePath() string {
	return "/api/" + r.apiVersion
}

// PublicRoutes returns the full route templates marked Public, in the form
// the JWT middleware matches against gin's FullPath
func (r *Router) PublicRoutes() []middleware.PublicRoute {
	var out []middleware.PublicRoute
	for _, reg := range r.registrars {
		if pl, ok := reg.(publicLister); ok {
			out = append(out, pl.publicRoutes(r.BasePath())...)
		}
	}
	return out
}

// Setup mounts every registrar on the engine
func (r *Router) Setup() {
	api := r.engine.Group(r.BasePath(), r.middleware...)
	for _, reg := range r.registrars {
		reg.RegisterRoutes(api)
	}
}

// DomainGroup collects the routes of one area (orders, drivers, ...) so
// they can be listed and marked public before being mounted
type DomainGroup struct {
	name     string
	prefix   string
	mw       []gin.HandlerFunc
	routes   []route
	children []*DomainGroup
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
	public   bool
}

func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

func (dg *DomainGroup) Name() string   { return dg.name }
func (dg *DomainGroup) Prefix() string { return dg.prefix }

// Use adds middleware to the group and its subgroups
func (dg *DomainGroup) Use(mw ...gin.HandlerFunc) *DomainGroup {
	dg.mw = append(dg.mw, mw...)
	return dg
}

func (dg *DomainGroup) Handle(method, relPath string, handlers ...gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, route{method: method, path: relPath, handlers: handlers})
	return dg
}

func (dg *DomainGroup) GET(p string, h ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodGet, p, h...)
}

func (dg *DomainGroup) POST(p string, h ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPost, p, h...)
}

func (dg *DomainGroup) PUT(p string, h ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPut, p, h...)
}

func (dg *DomainGroup) PATCH(p string, h ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPatch, p, h...)
}

func (dg *DomainGroup) DELETE(p string, h ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodDelete, p, h...)
}

// Public marks the last registered route as reachable without a token.
// Group middleware still runs on it.
func (dg *DomainGroup) Public() *DomainGroup {
	if n := len(dg.routes); n > 0 {
		dg.routes[n-1].public = true
	}
	return dg
}

// Group adds a nested group and returns it
func (dg *DomainGroup) Group(name, prefix string) *DomainGroup {
	child := NewDomainGroup(name, prefix)
	dg.children = append(dg.children, child)
	return child
}

func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group(dg.prefix, dg.mw...)
	for _, rt := range dg.routes {
		g.Handle(rt.method, rt.path, rt.handlers...)
	}
	for _, child := range dg.children {
		child.RegisterRoutes(g)
	}
}

// Routes lists "METHOD path" for the group and its subgroups, relative to
// wherever the group is mounted
func (dg *DomainGroup) Routes() []string {
	var out []string
	dg.walk("", func(rt route, full string) {
		out = append(out, rt.method+" "+full)
	})
	return out
}

func (dg *DomainGroup) publicRoutes(base string) []middleware.PublicRoute {
	var out []middleware.PublicRoute
	dg.walk(base, func(rt route, full string) {
		if rt.public {
			out = append(out, middleware.PublicRoute{Method: rt.method, Path: full})
		}
	})
	return out
}

// walk visits own routes first, then subgroups depth first
func (dg *DomainGroup) walk(base string, visit func(rt route, full string)) {
	prefix := joinPath(base, dg.prefix)
	for _, rt := range dg.routes {
		visit(rt, joinPath(prefix, rt.path))
	}
	for _, child := range dg.children {
		child.walk(prefix, visit)
	}
}

// joinPath joins segments the way gin does, keeping a trailing slash
func joinPath(base, rel string) string {
	if rel == "" {
		return base
	}
	joined := path.Join(base, rel)
	if strings.HasSuffix(rel, "/") && !strings.HasSuffix(joined, "/") {
		return joined + "/"
	}
	return joined
}
