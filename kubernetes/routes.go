package kubernetes

import (
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"

	"github.com/ez-pie/ez-workspace/schemas"
)

// RouteRule is one externally routable (host, path) → port mapping derived from a
// port's ingress declaration.
type RouteRule struct {
	Host         string
	Path         string
	Subdomain    string
	Port         int32
	Protocol     corev1.Protocol
	RequiresAuth bool
	Component    string
}

func (r RouteRule) specificity() int { return len(r.Subdomain) + len(r.Path) }

// Host substitutes subdomain into the domain template. An empty subdomain yields
// the apex domain: the separator next to the placeholder is dropped with it.
func Host(template, subdomain string) string {
	subdomain = strings.Trim(subdomain, ".-")
	idx := strings.Index(template, schemas.DomainPlaceholder)
	if idx < 0 {
		return template
	}
	before, after := template[:idx], template[idx+len(schemas.DomainPlaceholder):]
	if subdomain != "" {
		return before + subdomain + after
	}
	switch {
	case strings.HasSuffix(before, ".") || strings.HasSuffix(before, "-"):
		before = before[:len(before)-1]
	case strings.HasPrefix(after, ".") || strings.HasPrefix(after, "-"):
		after = after[1:]
	}
	return before + after
}

// collectRoutes returns one rule per port with an ingress, in declaration order.
func collectRoutes(components []schemas.ComponentSpec, template string) []RouteRule {
	var rules []RouteRule
	for _, c := range components {
		for _, p := range c.Ports {
			if p.Ingress == nil {
				continue
			}
			path := p.Ingress.Path
			if path == "" {
				path = schemas.DefaultIngressPath
			}
			rules = append(rules, RouteRule{
				Host:         Host(template, p.Ingress.Subdomain),
				Path:         path,
				Subdomain:    p.Ingress.Subdomain,
				Port:         p.Number,
				Protocol:     protocolOf(p),
				RequiresAuth: p.Ingress.RequiresAuth(),
				Component:    c.Name,
			})
		}
	}
	return rules
}

func partitionRoutes(rules []RouteRule) (auth, public []RouteRule) {
	for _, r := range rules {
		if r.RequiresAuth {
			auth = append(auth, r)
		} else {
			public = append(public, r)
		}
	}
	return auth, public
}

// sortBySpecificity orders rules by descending subdomain+path length so a longer
// prefix is matched before a shorter one. Ties keep their relative order.
func sortBySpecificity(rules []RouteRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].specificity() > rules[j].specificity()
	})
}

// PlanRoutes computes the ingress rules of the workspace.
//
// Auth rules all target frontDoorPort on path "/" and are de-duplicated by host:
// the front door dispatches paths of a host internally. Public rules target the
// declared port directly.
func PlanRoutes(components []schemas.ComponentSpec, template string, frontDoorPort int32) (auth, public []RouteRule) {
	authAll, public := partitionRoutes(collectRoutes(components, template))
	sortBySpecificity(authAll)
	sortBySpecificity(public)

	seen := make(map[string]bool, len(authAll))
	for _, r := range authAll {
		if seen[r.Host] {
			continue
		}
		seen[r.Host] = true
		r.Port = frontDoorPort
		r.Path = schemas.DefaultIngressPath
		r.Protocol = corev1.ProtocolTCP
		auth = append(auth, r)
	}
	return auth, public
}

// Route is one entry of the front door routing table.
type Route struct {
	Host       string `json:"host"`
	Path       string `json:"path"`
	Auth       bool   `json:"auth"`
	TargetPort int32  `json:"targetPort"`
	Component  string `json:"component"`
}

// RouteTable lists every ingress port of components for the front door, most
// specific first.
func RouteTable(components []schemas.ComponentSpec, template string) []Route {
	rules := collectRoutes(components, template)
	sortBySpecificity(rules)
	routes := make([]Route, 0, len(rules))
	for _, r := range rules {
		routes = append(routes, Route{
			Host:       r.Host,
			Path:       r.Path,
			Auth:       r.RequiresAuth,
			TargetPort: r.Port,
			Component:  r.Component,
		})
	}
	return routes
}

func protocolOf(p schemas.PortSpec) corev1.Protocol {
	if p.Protocol == "" {
		return corev1.ProtocolTCP
	}
	return corev1.Protocol(p.Protocol)
}
