package app

import (
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/rifas-mx/rifas/internal/domain"
)

func newID() string {
	return uuid.NewString()
}

// normalizeSelection trims, de-duplicates and sorts ticket ids. The sorted order
// is also the row-lock order used by the stores, which keeps concurrent buyers
// from deadlocking on overlapping selections.
func normalizeSelection(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, domain.ErrInvalidID
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, domain.ErrEmptySelection
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
