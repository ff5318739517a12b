// Пакет flavour — реестр словарей перевода канонических полей.
// Встроенные flavour (cmip5, cmip6, cordex, freva, nextgems, user)
// неизменяемы и хранятся в памяти; персональные — в документохранилище
// PostgreSQL, read-mostly кэш публикуется через atomic-указатель на
// неизменяемый снимок.
package flavour

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/freva-org/freva-nextgen/internal/apierrors"
	"github.com/freva-org/freva-nextgen/internal/domain/model"
	"github.com/freva-org/freva-nextgen/internal/repository"
)

// Entry — тегированное объединение: либо встроенный flavour (по имени),
// либо пользовательский (owner, name).
type Entry struct {
	Builtin bool
	Name    string
	Owner   string
}

// snapshot — неизменяемый срез состояния персональных flavour,
// публикуемый атомарно. Чтения никогда не блокируются записью.
type snapshot struct {
	byOwnerName map[string]*model.Flavour // ключ: owner + "\x00" + name
}

// Registry — реестр translate_in/translate_out для всех известных flavour.
type Registry struct {
	repo repository.FlavourRepository

	builtins map[string]*model.Flavour

	current atomic.Pointer[snapshot]
	mu      sync.Mutex // сериализует операции записи (Create/Delete)

	refreshEvery time.Duration
}

// NewRegistry создаёт реестр с предопределёнными встроенными словарями
// и пустым снимком персональных. Персональные словари попадают в снимок
// лениво, при промахе Resolve; RunRefreshLoop периодически вызывает
// Refresh, сверяя уже закэшированные записи с хранилищем.
func NewRegistry(repo repository.FlavourRepository, refreshEvery time.Duration) *Registry {
	r := &Registry{
		repo:         repo,
		builtins:     builtinMappings(),
		refreshEvery: refreshEvery,
	}
	r.current.Store(&snapshot{byOwnerName: map[string]*model.Flavour{}})
	return r
}

// RunRefreshLoop периодически обновляет снимок персональных flavour до
// отмены ctx. Ошибки обновления передаются в onError и не прерывают
// цикл.
func (r *Registry) RunRefreshLoop(ctx context.Context, onError func(error)) {
	ticker := time.NewTicker(r.refreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}

// Refresh перечитывает закэшированные персональные flavour из
// документохранилища и публикует новый снимок атомарно. Снимок
// наполняется лениво (промах в Resolve), а Refresh сходит за свежими
// версиями уже известных записей: изменения и удаления, сделанные
// другой репликой шлюза, доезжают сюда не позже refreshEvery.
func (r *Registry) Refresh(ctx context.Context) error {
	old := r.current.Load()
	if len(old.byOwnerName) == 0 {
		return nil
	}

	refreshed := make(map[string]*model.Flavour, len(old.byOwnerName))
	deleted := map[string]bool{}
	var firstErr error
	for key, cached := range old.byOwnerName {
		f, err := r.repo.Get(ctx, cached.Owner, cached.Name)
		switch {
		case err == nil:
			refreshed[key] = f
		case err == repository.ErrNotFound:
			deleted[key] = true
		default:
			if firstErr == nil {
				firstErr = err
			}
			refreshed[key] = cached
		}
	}

	// Слияние с актуальным снимком под мьютексом: записи, добавленные
	// Create/Update за время обхода, не теряются.
	r.mu.Lock()
	base := r.current.Load()
	fresh := make(map[string]*model.Flavour, len(base.byOwnerName))
	for k, v := range base.byOwnerName {
		if deleted[k] {
			continue
		}
		if f, ok := refreshed[k]; ok {
			v = f
		}
		fresh[k] = v
	}
	r.current.Store(&snapshot{byOwnerName: fresh})
	r.mu.Unlock()
	return firstErr
}

func snapshotKey(owner, name string) string {
	return owner + "\x00" + name
}

// Resolve возвращает Flavour по Entry. Для встроенных — из статической
// карты; для пользовательских — сперва из кэша, при промахе — из БД.
func (r *Registry) Resolve(ctx context.Context, e Entry) (*model.Flavour, error) {
	if e.Builtin {
		f, ok := r.builtins[e.Name]
		if !ok {
			return nil, apierrors.New(apierrors.CodeNotFound, fmt.Sprintf("встроенный flavour %q не найден", e.Name))
		}
		return f, nil
	}

	snap := r.current.Load()
	if f, ok := snap.byOwnerName[snapshotKey(e.Owner, e.Name)]; ok {
		return f, nil
	}

	f, err := r.repo.Get(ctx, e.Owner, e.Name)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apierrors.New(apierrors.CodeNotFound, fmt.Sprintf("flavour %q пользователя %q не найден", e.Name, e.Owner))
		}
		return nil, apierrors.New(apierrors.CodeBackendUnavailable, "документохранилище недоступно")
	}
	r.upsertLocal(f)
	return f, nil
}

// upsertLocal публикует новый снимок с добавленной/обновлённой записью.
// Копирует карту целиком — объём персональных flavour мал (на пользователя).
func (r *Registry) upsertLocal(f *model.Flavour) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.current.Load()
	fresh := make(map[string]*model.Flavour, len(old.byOwnerName)+1)
	for k, v := range old.byOwnerName {
		fresh[k] = v
	}
	fresh[snapshotKey(f.Owner, f.Name)] = f
	r.current.Store(&snapshot{byOwnerName: fresh})
}

func (r *Registry) removeLocal(owner, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.current.Load()
	fresh := make(map[string]*model.Flavour, len(old.byOwnerName))
	for k, v := range old.byOwnerName {
		fresh[k] = v
	}
	delete(fresh, snapshotKey(owner, name))
	r.current.Store(&snapshot{byOwnerName: fresh})
}

// Create регистрирует новый персональный flavour. Запрещено для имён,
// совпадающих со встроенными.
func (r *Registry) Create(ctx context.Context, f *model.Flavour) error {
	if model.IsBuiltin(f.Name) {
		return apierrors.New(apierrors.CodeImmutable, fmt.Sprintf("имя %q зарезервировано за встроенным flavour", f.Name))
	}
	if err := r.repo.Create(ctx, f); err != nil {
		if err == repository.ErrConflict {
			return apierrors.New(apierrors.CodeConflict, fmt.Sprintf("flavour %q уже существует", f.Name))
		}
		return apierrors.New(apierrors.CodeBackendUnavailable, "документохранилище недоступно")
	}
	r.upsertLocal(f)
	return nil
}

// Update переименовывает и/или обновляет mapping персонального flavour
// атомарно, никогда не затирая чужое имя. oldName
// и f.Name могут совпадать (обновление mapping без переименования).
// Встроенные flavour нельзя ни переименовать, ни затереть ими существующее имя.
func (r *Registry) Update(ctx context.Context, owner, oldName string, f *model.Flavour) error {
	if model.IsBuiltin(oldName) {
		return apierrors.New(apierrors.CodeImmutable, fmt.Sprintf("встроенный flavour %q нельзя изменить", oldName))
	}
	if model.IsBuiltin(f.Name) {
		return apierrors.New(apierrors.CodeImmutable, fmt.Sprintf("имя %q зарезервировано за встроенным flavour", f.Name))
	}
	if err := r.repo.Update(ctx, owner, oldName, f); err != nil {
		if err == repository.ErrNotFound {
			return apierrors.New(apierrors.CodeNotFound, fmt.Sprintf("flavour %q не найден", oldName))
		}
		if err == repository.ErrConflict {
			return apierrors.New(apierrors.CodeConflict, fmt.Sprintf("flavour %q уже существует", f.Name))
		}
		return apierrors.New(apierrors.CodeBackendUnavailable, "документохранилище недоступно")
	}
	if oldName != f.Name {
		r.removeLocal(owner, oldName)
	}
	r.upsertLocal(f)
	return nil
}

// List возвращает все персональные flavour владельца (встроенные не
// включаются — они перечисляются через ListBuiltins).
func (r *Registry) List(ctx context.Context, owner string) ([]*model.Flavour, error) {
	flavours, err := r.repo.List(ctx, owner)
	if err != nil {
		return nil, apierrors.New(apierrors.CodeBackendUnavailable, "документохранилище недоступно")
	}
	return flavours, nil
}

// ListBuiltins возвращает все встроенные flavour.
func (r *Registry) ListBuiltins() []*model.Flavour {
	out := make([]*model.Flavour, 0, len(r.builtins))
	for _, name := range model.BuiltinFlavours {
		out = append(out, r.builtins[name])
	}
	return out
}

// Delete удаляет персональный flavour. Встроенные flavour нельзя
// удалить.
func (r *Registry) Delete(ctx context.Context, owner, name string) error {
	if model.IsBuiltin(name) {
		return apierrors.New(apierrors.CodeImmutable, fmt.Sprintf("встроенный flavour %q нельзя удалить", name))
	}
	if err := r.repo.Delete(ctx, owner, name); err != nil {
		if err == repository.ErrNotFound {
			return apierrors.New(apierrors.CodeNotFound, fmt.Sprintf("flavour %q не найден", name))
		}
		return apierrors.New(apierrors.CodeBackendUnavailable, "документохранилище недоступно")
	}
	r.removeLocal(owner, name)
	return nil
}

// CanonicalFieldName переводит имя одного фасета specific → canonical.
// Имя, не входящее в Mapping словаря, возвращается без изменений.
func CanonicalFieldName(fl *model.Flavour, name string) string {
	if fl.IsGlobal() && fl.Name == "freva" {
		// freva — identity-словарь: канонические имена совпадают со
		// специфичными, маппинг не требуется.
		return name
	}
	for canonical, specific := range fl.Mapping {
		if specific == name {
			return canonical
		}
	}
	return name
}

// TranslateOut применяет Mapping словаря в направлении canonical → specific
// для полей результирующего документа, отдаваемого клиенту.
func TranslateOut(fl *model.Flavour, doc map[string]any) map[string]any {
	if fl.IsGlobal() && fl.Name == "freva" {
		return doc
	}
	out := make(map[string]any, len(doc))
	for canonical, value := range doc {
		if specific, ok := fl.Mapping[canonical]; ok {
			out[specific] = value
			continue
		}
		out[canonical] = value
	}
	return out
}
