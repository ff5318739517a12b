package flavour

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freva-org/freva-nextgen/internal/domain/model"
	"github.com/freva-org/freva-nextgen/internal/repository"
)

// fakeFlavourRepo — упрощённая реализация repository.FlavourRepository
// в памяти, для юнит-тестов реестра без поднятия PostgreSQL.
type fakeFlavourRepo struct {
	data map[string]*model.Flavour
}

func newFakeFlavourRepo() *fakeFlavourRepo {
	return &fakeFlavourRepo{data: map[string]*model.Flavour{}}
}

func (f *fakeFlavourRepo) key(owner, name string) string { return owner + "\x00" + name }

func (f *fakeFlavourRepo) Create(ctx context.Context, fl *model.Flavour) error {
	k := f.key(fl.Owner, fl.Name)
	if _, ok := f.data[k]; ok {
		return repository.ErrConflict
	}
	fl.CreatedAt = time.Now()
	f.data[k] = fl
	return nil
}

func (f *fakeFlavourRepo) Get(ctx context.Context, owner, name string) (*model.Flavour, error) {
	fl, ok := f.data[f.key(owner, name)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return fl, nil
}

func (f *fakeFlavourRepo) List(ctx context.Context, owner string) ([]*model.Flavour, error) {
	var out []*model.Flavour
	for _, fl := range f.data {
		if fl.Owner == owner {
			out = append(out, fl)
		}
	}
	return out, nil
}

func (f *fakeFlavourRepo) Delete(ctx context.Context, owner, name string) error {
	k := f.key(owner, name)
	if _, ok := f.data[k]; !ok {
		return repository.ErrNotFound
	}
	delete(f.data, k)
	return nil
}

func (f *fakeFlavourRepo) Update(ctx context.Context, owner, oldName string, fl *model.Flavour) error {
	oldKey := f.key(owner, oldName)
	existing, ok := f.data[oldKey]
	if !ok {
		return repository.ErrNotFound
	}
	newKey := f.key(owner, fl.Name)
	if newKey != oldKey {
		if _, collide := f.data[newKey]; collide {
			return repository.ErrConflict
		}
	}
	fl.CreatedAt = existing.CreatedAt
	delete(f.data, oldKey)
	f.data[newKey] = fl
	return nil
}

func TestRegistry_ResolveBuiltin(t *testing.T) {
	reg := NewRegistry(newFakeFlavourRepo(), time.Minute)

	fl, err := reg.Resolve(context.Background(), Entry{Builtin: true, Name: "cmip6"})
	require.NoError(t, err)
	assert.Equal(t, "source_id", fl.Mapping["model"])
}

func TestRegistry_ResolveBuiltinUnknown(t *testing.T) {
	reg := NewRegistry(newFakeFlavourRepo(), time.Minute)

	_, err := reg.Resolve(context.Background(), Entry{Builtin: true, Name: "does-not-exist"})
	assert.Error(t, err)
}

func TestRegistry_CreateRejectsBuiltinName(t *testing.T) {
	reg := NewRegistry(newFakeFlavourRepo(), time.Minute)

	err := reg.Create(context.Background(), &model.Flavour{Name: "cmip6", Owner: "alice"})
	assert.Error(t, err)
}

func TestRegistry_CreateThenResolveUser(t *testing.T) {
	reg := NewRegistry(newFakeFlavourRepo(), time.Minute)

	fl := &model.Flavour{Name: "my-dict", Owner: "alice", Mapping: map[string]string{"variable": "var"}}
	require.NoError(t, reg.Create(context.Background(), fl))

	got, err := reg.Resolve(context.Background(), Entry{Name: "my-dict", Owner: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "var", got.Mapping["variable"])
}

func TestRegistry_DeleteRejectsBuiltin(t *testing.T) {
	reg := NewRegistry(newFakeFlavourRepo(), time.Minute)

	err := reg.Delete(context.Background(), model.GlobalOwner, "cmip5")
	assert.Error(t, err)
}

func TestRegistry_DeleteUser(t *testing.T) {
	reg := NewRegistry(newFakeFlavourRepo(), time.Minute)
	fl := &model.Flavour{Name: "mine", Owner: "bob", Mapping: map[string]string{}}
	require.NoError(t, reg.Create(context.Background(), fl))

	require.NoError(t, reg.Delete(context.Background(), "bob", "mine"))

	_, err := reg.Resolve(context.Background(), Entry{Name: "mine", Owner: "bob"})
	assert.Error(t, err)
}

func TestRegistry_UpdateRenamesAtomically(t *testing.T) {
	reg := NewRegistry(newFakeFlavourRepo(), time.Minute)
	fl := &model.Flavour{Name: "my1", Owner: "alice", Mapping: map[string]string{"model": "m1"}}
	require.NoError(t, reg.Create(context.Background(), fl))

	renamed := &model.Flavour{Name: "my2", Owner: "alice", Mapping: map[string]string{"model": "m2"}}
	require.NoError(t, reg.Update(context.Background(), "alice", "my1", renamed))

	_, err := reg.Resolve(context.Background(), Entry{Name: "my1", Owner: "alice"})
	assert.Error(t, err, "старое имя не должно разрешаться после переименования")

	got, err := reg.Resolve(context.Background(), Entry{Name: "my2", Owner: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "m2", got.Mapping["model"])
}

func TestRegistry_UpdateRejectsNameCollision(t *testing.T) {
	reg := NewRegistry(newFakeFlavourRepo(), time.Minute)
	require.NoError(t, reg.Create(context.Background(), &model.Flavour{Name: "my1", Owner: "alice", Mapping: map[string]string{}}))
	require.NoError(t, reg.Create(context.Background(), &model.Flavour{Name: "my2", Owner: "alice", Mapping: map[string]string{}}))

	err := reg.Update(context.Background(), "alice", "my1", &model.Flavour{Name: "my2", Owner: "alice", Mapping: map[string]string{}})
	assert.Error(t, err, "переименование не должно затирать существующее имя")

	got, err := reg.Resolve(context.Background(), Entry{Name: "my1", Owner: "alice"})
	require.NoError(t, err, "неудачное переименование не должно терять исходную запись")
	assert.Equal(t, "my1", got.Name)
}

func TestRegistry_UpdateRejectsBuiltinNames(t *testing.T) {
	reg := NewRegistry(newFakeFlavourRepo(), time.Minute)
	require.NoError(t, reg.Create(context.Background(), &model.Flavour{Name: "mine", Owner: "alice", Mapping: map[string]string{}}))

	err := reg.Update(context.Background(), "alice", "mine", &model.Flavour{Name: "cmip6", Owner: "alice"})
	assert.Error(t, err)
}

func TestTranslateOut_CMIP6(t *testing.T) {
	fl := builtinMappings()["cmip6"]
	doc := map[string]any{"model": "FOO-Model", "unrelated": "x"}

	out := TranslateOut(fl, doc)
	assert.Equal(t, "FOO-Model", out["source_id"])
	assert.Equal(t, "x", out["unrelated"])
}

func TestCanonicalFieldName_CMIP6(t *testing.T) {
	fl := builtinMappings()["cmip6"]

	assert.Equal(t, "model", CanonicalFieldName(fl, "source_id"))
	assert.Equal(t, "variable", CanonicalFieldName(fl, "variable_id"))
	assert.Equal(t, "unrelated", CanonicalFieldName(fl, "unrelated"))
}

func TestCanonicalFieldName_FrevaIsIdentity(t *testing.T) {
	fl := builtinMappings()["freva"]
	assert.Equal(t, "variable", CanonicalFieldName(fl, "variable"))
	assert.Equal(t, "anything", CanonicalFieldName(fl, "anything"))
}
