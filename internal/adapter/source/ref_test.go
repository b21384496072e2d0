package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/port"
)

func TestParseRepoRef(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want domain.RepoRef
	}{
		{"https", "https://github.com/acme/widgets", domain.RepoRef{Host: "github.com", Owner: "acme", Name: "widgets"}},
		{"https with .git", "https://github.com/acme/widgets.git", domain.RepoRef{Host: "github.com", Owner: "acme", Name: "widgets"}},
		{"www host", "https://www.github.com/acme/widgets/", domain.RepoRef{Host: "github.com", Owner: "acme", Name: "widgets"}},
		{"tree url", "https://github.com/acme/widgets/tree/release/v2", domain.RepoRef{Host: "github.com", Owner: "acme", Name: "widgets", Ref: "release/v2"}},
		{"ssh", "git@github.com:acme/widgets.git", domain.RepoRef{Host: "github.com", Owner: "acme", Name: "widgets"}},
		{"shorthand", "acme/widgets", domain.RepoRef{Host: "github.com", Owner: "acme", Name: "widgets"}},
		{"shorthand with ref", "acme/widgets@v1.2.0", domain.RepoRef{Host: "github.com", Owner: "acme", Name: "widgets", Ref: "v1.2.0"}},
		{"local", "local:acme/widgets", domain.RepoRef{Host: "local", Owner: "acme", Name: "widgets"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRepoRef(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRepoRef_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "widgets", "https://github.com/acme", "git@github.com", "a/b/c", "acme/widgets@--output=/tmp/x", "https://github.com/acme/widgets/tree/-x"} {
		_, err := ParseRepoRef(raw)
		assert.ErrorIs(t, err, port.ErrInvalidRepoRef, raw)
	}
}
