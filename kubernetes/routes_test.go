package kubernetes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ez-pie/ez-workspace/schemas"
)

func TestHost(t *testing.T) {
	tests := []struct {
		template  string
		subdomain string
		want      string
	}{
		{"%s.example.com", "api", "api.example.com"},
		{"%s.example.com", "", "example.com"},
		{"%s.example.com", ".api.", "api.example.com"},
		{"ws-%s.example.com", "", "ws.example.com"},
		{"%s-ws.example.com", "", "ws.example.com"},
		{"example.com/%s", "", "example.com/"},
	}
	for _, tt := range tests {
		t.Run(tt.template+"/"+tt.subdomain, func(t *testing.T) {
			got := Host(tt.template, tt.subdomain)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "..")
			assert.NotContains(t, got, "--")
		})
	}

	apex := Host("%s.example.com", "")
	assert.Equal(t, apex, Host("%s.example.com", ""))
	assert.False(t, strings.HasPrefix(apex, "."))
}

func boolPtr(b bool) *bool { return &b }

func port(name string, number int32, subdomain, path string, auth bool) schemas.PortSpec {
	return schemas.PortSpec{
		Name:    name,
		Number:  number,
		Ingress: &schemas.IngressSpec{Subdomain: subdomain, Path: path, Auth: boolPtr(auth)},
	}
}

func routingComponents() []schemas.ComponentSpec {
	return []schemas.ComponentSpec{
		{Name: "web", Ports: []schemas.PortSpec{
			port("http", 3000, "app", "/", true),
			port("docs", 3001, "app", "/docs", true),
			{Name: "metrics", Number: 9090},
		}},
		{Name: "api", Ports: []schemas.PortSpec{
			port("http", 8080, "api", "/", false),
			port("admin", 8081, "api", "/admin", false),
			port("grpc", 8082, "rpc", "/", false),
		}},
	}
}

func TestPlanRoutesPartitionIsTotalAndDisjoint(t *testing.T) {
	components := routingComponents()
	auth, public := partitionRoutes(collectRoutes(components, "%s.example.com"))

	assert.Len(t, auth, 2)
	assert.Len(t, public, 3)
	for _, r := range auth {
		assert.True(t, r.RequiresAuth)
	}
	for _, r := range public {
		assert.False(t, r.RequiresAuth)
	}

	var ingressPorts int
	for _, c := range components {
		for _, p := range c.Ports {
			if p.Ingress != nil {
				ingressPorts++
			}
		}
	}
	assert.Equal(t, ingressPorts, len(auth)+len(public))
}

func TestPlanRoutes(t *testing.T) {
	auth, public := PlanRoutes(routingComponents(), "%s.example.com", 28543)

	require.Len(t, auth, 1)
	assert.Equal(t, "app.example.com", auth[0].Host)
	assert.Equal(t, "/", auth[0].Path)
	assert.Equal(t, int32(28543), auth[0].Port)
	// the most specific rule of the host wins
	assert.Equal(t, "web", auth[0].Component)

	require.Len(t, public, 3)
	assert.Equal(t, "/admin", public[0].Path)
	assert.Equal(t, int32(8081), public[0].Port)
	assert.Equal(t, "api.example.com", public[1].Host)
	assert.Equal(t, int32(8080), public[1].Port)
	assert.Equal(t, "rpc.example.com", public[2].Host)
	assert.Equal(t, int32(8082), public[2].Port)
}

func TestSortBySpecificityIsStable(t *testing.T) {
	rules := []RouteRule{
		{Subdomain: "a", Path: "/x", Component: "first"},
		{Subdomain: "abcd", Path: "/", Component: "longest"},
		{Subdomain: "b", Path: "/y", Component: "second"},
		{Subdomain: "ab", Path: "/", Component: "third"},
	}
	sortBySpecificity(rules)

	var order []string
	for _, r := range rules {
		order = append(order, r.Component)
	}
	assert.Equal(t, []string{"longest", "first", "second", "third"}, order)
}

func TestRouteTableKeepsAuthFlag(t *testing.T) {
	routes := RouteTable(routingComponents(), "%s.example.com")
	require.Len(t, routes, 5)

	assert.Equal(t, Route{Host: "api.example.com", Path: "/admin", Auth: false, TargetPort: 8081, Component: "api"}, routes[0])
	assert.Equal(t, Route{Host: "app.example.com", Path: "/docs", Auth: true, TargetPort: 3001, Component: "web"}, routes[1])
	for _, r := range routes {
		if r.Component == "api" {
			assert.False(t, r.Auth)
		}
	}
}
