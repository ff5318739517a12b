package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/freva-org/freva-nextgen/internal/apierrors"
	"github.com/freva-org/freva-nextgen/internal/domain/model"
	"github.com/freva-org/freva-nextgen/internal/flavour"
	"github.com/freva-org/freva-nextgen/internal/search"
	"github.com/freva-org/freva-nextgen/internal/searchindex"
)

// resolveFlavourEntry строит flavour.Entry из имени, переданного в запросе.
// Встроенные имена (cmip5, cmip6, …) разрешаются глобально; любое другое
// имя трактуется как персональный словарь владельца principal.
func resolveFlavourEntry(name, principal string) flavour.Entry {
	if model.IsBuiltin(name) {
		return flavour.Entry{Builtin: true, Name: name}
	}
	return flavour.Entry{Owner: principal, Name: name}
}

// resolveFlavour разрешает имя словаря: встроенный, затем персональный
// словарь principal, затем общий (owner=global) — так словари,
// опубликованные администратором, видны всем пользователям.
func (h *Handler) resolveFlavour(ctx context.Context, name, principal string) (*model.Flavour, error) {
	entry := resolveFlavourEntry(name, principal)
	fl, err := h.Flavours.Resolve(ctx, entry)
	if err == nil || entry.Builtin || principal == model.GlobalOwner {
		return fl, err
	}
	var k *apierrors.Kind
	if errors.As(err, &k) && k.Code == apierrors.CodeNotFound {
		return h.Flavours.Resolve(ctx, flavour.Entry{Owner: model.GlobalOwner, Name: name})
	}
	return nil, err
}

// translateFacetsIn резолвит flavour и переводит фасеты specific → canonical.
// Ключ, не являющийся ни специфичным именем словаря, ни каноническим полем,
// отклоняется как INVALID_FACET. Суффикс отрицания отделяется перед
// переводом и возвращается на место после него.
func (h *Handler) translateFacetsIn(ctx context.Context, flavourName, principal string, raw map[string][]string) (map[string][]string, error) {
	fl, err := h.resolveFlavour(ctx, flavourName, principal)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(raw))
	for key, values := range raw {
		field, negated := search.SplitNegation(key)
		canonical := flavour.CanonicalFieldName(fl, field)
		if !model.IsCanonicalField(canonical) {
			return nil, apierrors.New(apierrors.CodeInvalidFacet, fmt.Sprintf("неизвестный фасет %q", field))
		}
		if negated {
			canonical += search.NegationSuffix
		}
		out[canonical] = append(out[canonical], values...)
	}
	return out, nil
}

// translateOutFacetCounts переводит имена канонических полей в результате
// metadata_search обратно в специфичные для flavour (canonical → specific).
func (h *Handler) translateOutFacetCounts(ctx context.Context, flavourName, principal string, counts map[string][]searchindex.FacetCount) (map[string][]searchindex.FacetCount, error) {
	fl, err := h.resolveFlavour(ctx, flavourName, principal)
	if err != nil {
		return nil, err
	}
	if fl.IsGlobal() && fl.Name == "freva" {
		return counts, nil
	}

	asAny := make(map[string]any, len(counts))
	for k, v := range counts {
		asAny[k] = v
	}
	translated := flavour.TranslateOut(fl, asAny)

	out := make(map[string][]searchindex.FacetCount, len(translated))
	for k, v := range translated {
		out[k] = v.([]searchindex.FacetCount)
	}
	return out, nil
}
