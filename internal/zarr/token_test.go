package zarr

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freva-org/freva-nextgen/internal/domain/model"
)

func TestDeriveToken_Deterministic(t *testing.T) {
	opts := model.ConvertOptions{Aggregate: model.AggregateMerge}

	tok1 := DeriveToken("alice", []string{"/data/a.nc", "/data/b.nc"}, opts)
	tok2 := DeriveToken("alice", []string{"/data/b.nc", "/data/a.nc"}, opts)
	assert.Equal(t, tok1, tok2, "порядок путей не влияет на токен")

	_, err := uuid.Parse(tok1)
	require.NoError(t, err)
}

func TestDeriveToken_PerOwnerNamespace(t *testing.T) {
	paths := []string{"/data/a.nc"}
	opts := model.ConvertOptions{}

	tokAlice := DeriveToken("alice", paths, opts)
	tokBob := DeriveToken("bob", paths, opts)
	assert.NotEqual(t, tokAlice, tokBob, "одинаковые пути разных владельцев дают разные токены")
}

func TestDeriveToken_OptionsAffectToken(t *testing.T) {
	paths := []string{"/data/a.nc"}

	tok1 := DeriveToken("alice", paths, model.ConvertOptions{})
	tok2 := DeriveToken("alice", paths, model.ConvertOptions{Public: true})
	assert.NotEqual(t, tok1, tok2)
}
