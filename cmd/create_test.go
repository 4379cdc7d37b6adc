package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomxw/sandboxd/internal/docker"
)

func TestParsePortFlags(t *testing.T) {
	mappings, err := parsePortFlags([]string{"8080:80", "5353:53/udp"})
	require.NoError(t, err)
	assert.Equal(t, []docker.PortMapping{
		{HostPort: 8080, ContainerPort: 80},
		{HostPort: 5353, ContainerPort: 53, Protocol: "udp"},
	}, mappings)
}

func TestParsePortFlags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		spec string
	}{
		{name: "no separator", spec: "8080"},
		{name: "bad host port", spec: "x:80"},
		{name: "bad container port", spec: "8080:x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parsePortFlags([]string{tt.spec})
			assert.Error(t, err)
		})
	}
}

func TestParsePortFlags_Empty(t *testing.T) {
	mappings, err := parsePortFlags(nil)
	require.NoError(t, err)
	assert.Nil(t, mappings)
}
