package router

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/taskflow/pkg/constants"
)

// Route is one entry of the dispatch table.
type Route struct {
	Name    string
	Match   func(path string) bool
	Handler gin.HandlerFunc
}

// Dispatcher 按顺序匹配路由，第一个命中者处理请求；均未命中时交给默认路由
type Dispatcher struct {
	routes   []Route
	fallback Route
}

// NewDispatcher creates a dispatcher. Order of routes is significant.
func NewDispatcher(fallback Route, routes ...Route) *Dispatcher {
	return &Dispatcher{routes: routes, fallback: fallback}
}

// Resolve returns the route that serves path.
func (d *Dispatcher) Resolve(path string) Route {
	for _, r := range d.routes {
		if r.Match(path) {
			return r
		}
	}
	return d.fallback
}

// Dispatch serves the request with the resolved route.
func (d *Dispatcher) Dispatch(c *gin.Context) {
	r := d.Resolve(c.Request.URL.Path)
	c.Set(constants.GinKeyRouteName, r.Name)
	r.Handler(c)
}

// PathIs matches exactly p.
func PathIs(p string) func(string) bool {
	return func(path string) bool { return path == p }
}

// PathUnder matches p itself and everything below it.
func PathUnder(p string) func(string) bool {
	return func(path string) bool { return path == p || strings.HasPrefix(path, p+"/") }
}

// PathPrefix matches paths starting with prefix.
func PathPrefix(prefix string) func(string) bool {
	return func(path string) bool { return strings.HasPrefix(path, prefix) }
}
