// Package router assembles the gin engine: middleware chain, route tree and
// the rate limiters it owns.
package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// APIPrefix is where every versioned route is mounted
const APIPrefix = "/api/v1"

// Route describes one mounted endpoint
type Route struct {
	Method string
	Path   string
}

// Group is a declarative route tree: routes and child groups under a common
// prefix and middleware. Nothing reaches gin until Mount.
type Group struct {
	prefix     string
	middleware []gin.HandlerFunc
	routes     []groupRoute
	children   []*Group
}

type groupRoute struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewGroup starts a tree at prefix
func NewGroup(prefix string, middleware ...gin.HandlerFunc) *Group {
	return &Group{prefix: prefix, middleware: middleware}
}

// Group adds a child under g's prefix. Middleware passed here applies to the
// child only.
func (g *Group) Group(prefix string, middleware ...gin.HandlerFunc) *Group {
	child := NewGroup(prefix, middleware...)
	g.children = append(g.children, child)
	return child
}

// Handle adds a route; the verb helpers below cover the methods the API uses
func (g *Group) Handle(method, relativePath string, handlers ...gin.HandlerFunc) *Group {
	g.routes = append(g.routes, groupRoute{method: method, path: relativePath, handlers: handlers})
	return g
}

func (g *Group) GET(p string, h ...gin.HandlerFunc) *Group { return g.Handle(http.MethodGet, p, h...) }
func (g *Group) POST(p string, h ...gin.HandlerFunc) *Group { return g.Handle(http.MethodPost, p, h...) }
func (g *Group) PUT(p string, h ...gin.HandlerFunc) *Group { return g.Handle(http.MethodPut, p, h...) }
func (g *Group) DELETE(p string, h ...gin.HandlerFunc) *Group { return g.Handle(http.MethodDelete, p, h...) }

// Mount registers the tree on parent and returns what was mounted, in
// declaration order with children after their parent's own routes
func (g *Group) Mount(parent *gin.RouterGroup) []Route {
	rg := parent.Group(g.prefix, g.middleware...)

	mounted := make([]Route, 0, len(g.routes))
	for _, r := range g.routes {
		rg.Handle(r.method, r.path, r.handlers...)
		mounted = append(mounted, Route{Method: r.method, Path: joinRoute(rg.BasePath(), r.path)})
	}
	for _, child := range g.children {
		mounted = append(mounted, child.Mount(rg)...)
	}
	return mounted
}

// joinRoute mirrors gin's path joining; an empty relative path is the prefix
func joinRoute(prefix, relative string) string {
	if relative == "" {
		return prefix
	}
	return path.Join(prefix, relative)
}
