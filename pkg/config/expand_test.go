package config_test

import (
	"testing"

	"github.com/cuemby/cdf-extractor-utils/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestExpandEnvSubstitutesKnownNames(t *testing.T) {
	t.Setenv("CDF_PROJECT", "my-project")
	got := config.ExpandEnv("project: ${CDF_PROJECT}")
	assert.Equal(t, "project: my-project", got)
}

func TestExpandEnvLeavesUnknownNamesLiteral(t *testing.T) {
	got := config.ExpandEnv("token: ${DOES_NOT_EXIST_12345}")
	assert.Equal(t, "token: ${DOES_NOT_EXIST_12345}", got)
}

func TestExpandEnvHandlesMultipleSubstitutions(t *testing.T) {
	t.Setenv("HOST", "example.com")
	t.Setenv("PORT", "443")
	got := config.ExpandEnv("https://${HOST}:${PORT}/api")
	assert.Equal(t, "https://example.com:443/api", got)
}
