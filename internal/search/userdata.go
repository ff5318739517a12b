package search

import (
	"fmt"

	"github.com/freva-org/freva-nextgen/internal/apierrors"
)

// requiredUserDataFields — обязательные атрибуты записи пользовательских
// данных при добавлении.
var requiredUserDataFields = []string{"file", "variable", "time", "time_frequency"}

// UserDataEntry — одна запись, передаваемая в add_user_data; Facets
// содержит поля конкретной записи, переопределяющие facets уровня запроса.
type UserDataEntry struct {
	Facets map[string]string
}

// ValidateUserDataEntry проверяет наличие обязательных атрибутов после
// слияния facets уровня запроса и facets записи. merged —
// объединённый набор (entry переопределяет запрос).
func ValidateUserDataEntry(merged map[string]string) error {
	for _, f := range requiredUserDataFields {
		if merged[f] == "" {
			return apierrors.New(apierrors.CodeInvalidInput, fmt.Sprintf("обязательное поле %q отсутствует", f))
		}
	}
	return nil
}

// MergeEntryFacets объединяет facets уровня запроса с facets конкретной
// записи; значения записи имеют приоритет.
func MergeEntryFacets(requestFacets map[string]string, entryFacets map[string]string) map[string]string {
	merged := make(map[string]string, len(requestFacets)+len(entryFacets))
	for k, v := range requestFacets {
		merged[k] = v
	}
	for k, v := range entryFacets {
		merged[k] = v
	}
	return merged
}

// CheckDeleteOwnership проверяет право principal на удаление записей,
// затронутых delete_user_data: отклоняет запрос, если среди
// найденных владельцев есть отличный от principal. Администратор может
// удалять чужие записи, явно передав user=<name>; для остальных
// user=<name> допустим только с собственным именем.
func CheckDeleteOwnership(principal string, isAdmin bool, explicitUser string, owners []string) error {
	if isAdmin {
		return nil
	}
	if explicitUser != "" && explicitUser != principal {
		return apierrors.New(apierrors.CodeForbidden, "переопределение user=<name> доступно только администраторам")
	}
	for _, o := range owners {
		if o != principal {
			return apierrors.New(apierrors.CodeForbidden, "удаление чужих пользовательских данных запрещено")
		}
	}
	return nil
}
