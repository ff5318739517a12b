package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freva-org/freva-nextgen/internal/apierrors"
	"github.com/freva-org/freva-nextgen/internal/domain/model"
	"github.com/freva-org/freva-nextgen/internal/flavour"
	"github.com/freva-org/freva-nextgen/internal/repository"
)

type stubFlavourRepo struct{}

func (stubFlavourRepo) Create(context.Context, *model.Flavour) error { return nil }
func (stubFlavourRepo) Get(context.Context, string, string) (*model.Flavour, error) {
	return nil, repository.ErrNotFound
}
func (stubFlavourRepo) List(context.Context, string) ([]*model.Flavour, error) { return nil, nil }
func (stubFlavourRepo) Delete(context.Context, string, string) error {
	return repository.ErrNotFound
}
func (stubFlavourRepo) Update(context.Context, string, string, *model.Flavour) error { return nil }

func newFlavourTestHandler() *Handler {
	return &Handler{Flavours: flavour.NewRegistry(stubFlavourRepo{}, time.Minute)}
}

func TestTranslateFacetsIn_UnknownKeyRejected(t *testing.T) {
	h := newFlavourTestHandler()

	_, err := h.translateFacetsIn(context.Background(), "cmip6", "alice", map[string][]string{
		"bogus_key": {"x"},
	})
	var k *apierrors.Kind
	require.ErrorAs(t, err, &k)
	assert.Equal(t, apierrors.CodeInvalidFacet, k.Code)
}

func TestTranslateFacetsIn_TranslatesSpecificAndNegatedKeys(t *testing.T) {
	h := newFlavourTestHandler()

	out, err := h.translateFacetsIn(context.Background(), "cmip6", "alice", map[string][]string{
		"source_id":        {"MPI-ESM"},
		"variable_id_not_": {"tas"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"MPI-ESM"}, out["model"])
	assert.Equal(t, []string{"tas"}, out["variable_not_"])
}

func TestTranslateFacetsIn_CanonicalKeysPassThrough(t *testing.T) {
	h := newFlavourTestHandler()

	out, err := h.translateFacetsIn(context.Background(), "freva", "alice", map[string][]string{
		"variable": {"tas"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"tas"}, out["variable"])
}
