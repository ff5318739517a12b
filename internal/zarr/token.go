package zarr

import (
	"crypto/sha256"
	"encoding/json"
	"sort"

	"github.com/google/uuid"

	"github.com/freva-org/freva-nextgen/internal/domain/model"
)

// serviceGUID — фиксированный GUID сервиса. Пространство имён UUIDv5
// для конкретного principal получается XOR'ом этого GUID с SHA-256 его
// subject: токены разных пользователей не пересекаются даже при
// идентичных путях и опциях, а повторный запрос той же конвертации
// возвращает тот же токен.
var serviceGUID = uuid.MustParse("2c9f6e2a-7b3f-4e1a-9d3b-8f2a6c1d9e4f")

func namespaceFor(owner string) uuid.UUID {
	sub := sha256.Sum256([]byte(owner))
	ns := serviceGUID
	for i := range ns {
		ns[i] ^= sub[i]
	}
	return ns
}

// DeriveToken вычисляет идемпотентный токен задания: UUIDv5 над
// канонической JSON-формой (отсортированные пути, опции) в пространстве
// имён владельца.
func DeriveToken(owner string, paths []string, opts model.ConvertOptions) string {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	name, _ := json.Marshal(struct {
		Paths   []string             `json:"paths"`
		Options model.ConvertOptions `json:"options"`
	}{sorted, opts})

	return uuid.NewSHA1(namespaceFor(owner), name).String()
}
