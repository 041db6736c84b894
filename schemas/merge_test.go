package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestSpecializeScalarsAndMaps(t *testing.T) {
	base := ComponentSpec{
		Name:    "editor",
		Image:   "example/editor",
		Tag:     "1.0",
		Args:    []string{"--base"},
		Env:     map[string]string{"A": "base", "B": "base"},
		Secrets: map[string]string{"TOKEN": "base"},
	}

	out := Specialize(base, Override{
		Role:    RoleWorkspace,
		Tag:     "2.0",
		Args:    []string{"/workspace", "--port=28544"},
		Env:     map[string]string{"B": "override", "C": "override"},
		Secrets: map[string]string{"KEY": "override"},
	})

	assert.Equal(t, RoleWorkspace, out.Role)
	assert.Equal(t, "editor", out.Name)
	assert.Equal(t, "example/editor", out.Image)
	assert.Equal(t, "2.0", out.Tag)
	assert.Equal(t, []string{"/workspace", "--port=28544"}, out.Args)
	assert.Equal(t, map[string]string{"A": "base", "B": "override", "C": "override"}, out.Env)
	assert.Equal(t, map[string]string{"TOKEN": "base", "KEY": "override"}, out.Secrets)

	// inputs are left untouched
	assert.Equal(t, map[string]string{"A": "base", "B": "base"}, base.Env)
	assert.Equal(t, []string{"--base"}, base.Args)
}

func TestSpecializeConcatenatesSequences(t *testing.T) {
	base := ComponentSpec{
		Name:    "gateway",
		Ports:   []PortSpec{{Name: "http", Number: 8080, Protocol: "TCP"}},
		Volumes: []VolumeSpec{{Name: "cache", MountPath: "/cache"}},
	}
	out := Specialize(base, Override{
		Ports:   []PortSpec{{Name: "http", Number: 8080, Protocol: "TCP"}, {Name: "jump", Number: 28543, Protocol: "TCP"}},
		Volumes: []VolumeSpec{{Name: "workspace", MountPath: "/workspace"}},
	})

	require.Len(t, out.Ports, 3)
	assert.Equal(t, []string{"http", "http", "jump"}, []string{out.Ports[0].Name, out.Ports[1].Name, out.Ports[2].Name})
	assert.Equal(t, []VolumeSpec{{Name: "cache", MountPath: "/cache"}, {Name: "workspace", MountPath: "/workspace"}}, out.Volumes)

	out.Ports[0].Number = 1
	assert.Equal(t, int32(8080), base.Ports[0].Number)
}

func TestSpecializeDoesNotAliasIngress(t *testing.T) {
	base := ComponentSpec{
		Name:  "api",
		Ports: []PortSpec{{Name: "http", Number: 80, Ingress: &IngressSpec{Subdomain: "api", Path: "/", Auth: boolPtr(false)}}},
	}
	out := Specialize(base, Override{})
	*out.Ports[0].Ingress.Auth = true
	out.Ports[0].Ingress.Subdomain = "changed"

	assert.False(t, *base.Ports[0].Ingress.Auth)
	assert.Equal(t, "api", base.Ports[0].Ingress.Subdomain)
}

func TestSpecializeMappingFieldsCompose(t *testing.T) {
	a := ComponentSpec{Name: "a", Env: map[string]string{"K1": "a", "K2": "a", "K3": "a"}}
	b := Override{Env: map[string]string{"K2": "b", "K4": "b"}}
	c := Override{Env: map[string]string{"K3": "c", "K4": "c"}}

	stepwise := Specialize(Specialize(a, b), c)
	union := Specialize(a, Override{Env: mergeStringMaps(b.Env, c.Env)})

	assert.Equal(t, union.Env, stepwise.Env)
	assert.Equal(t, map[string]string{"K1": "a", "K2": "b", "K3": "c", "K4": "c"}, stepwise.Env)
}

func TestSpecializeSequenceOrderIndependentContent(t *testing.T) {
	p1 := PortSpec{Name: "one", Number: 1}
	p2 := PortSpec{Name: "two", Number: 2}

	ab := Specialize(ComponentSpec{Ports: []PortSpec{p1}}, Override{Ports: []PortSpec{p2}})
	ba := Specialize(ComponentSpec{Ports: []PortSpec{p2}}, Override{Ports: []PortSpec{p1}})

	assert.ElementsMatch(t, ab.Ports, ba.Ports)
}

func TestSpecializeEmptyOverrideKeepsNilCollections(t *testing.T) {
	out := Specialize(ComponentSpec{Name: "plain", Image: "busybox"}, Override{Role: RoleComponent})

	assert.Nil(t, out.Env)
	assert.Nil(t, out.Secrets)
	assert.Nil(t, out.Ports)
	assert.Nil(t, out.Volumes)
	assert.Nil(t, out.Files)
	assert.Equal(t, RoleComponent, out.Role)
}
