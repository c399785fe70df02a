package core

import (
	"context"
	"duesdesk/pkg/domain"
	"fmt"
	"strconv"
)

const opMarkCleared = "mark_cleared"

// MarkCleared signs off one gate of a clearance application. The gate is
// stamped with the operator and the current time and its remarks are
// cleared. The application becomes complete once all five gates are cleared;
// otherwise its status is left as is. Clearing a gate twice is a
// precondition failure.
func (s *Service) MarkCleared(ctx context.Context, appID int, gate Gate) (NoDueApplication, Result, error) {
	var (
		updated NoDueApplication
		res     Result
	)
	err := s.mutate(ctx, opMarkCleared, func(ctx context.Context) (int, error) {
		if !gate.Valid() {
			return appID, domain.ValidationError{Fields: map[string]string{"gate": fmt.Sprintf("unknown clearance gate %q", gate)}}
		}
		apps := s.store.NoDueApplications(ctx)
		idx := -1
		for i := range apps {
			if apps[i].ID == appID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return appID, domain.ErrNotFound{Entity: EntityNoDueApplication, ID: strconv.Itoa(appID)}
		}
		before := apps[idx]
		after := before
		entry, _ := after.Clearances.Gate(gate)
		if entry.Cleared {
			return appID, domain.PreconditionError{
				Entity:    EntityNoDueApplication,
				ID:        appID,
				Operation: "clear " + string(gate),
				Current:   "cleared",
				Allowed:   []string{"not cleared"},
			}
		}
		*entry = Clearance{Cleared: true, ClearedBy: s.actor, Date: s.timestamp(), Remarks: ""}
		if after.Clearances.AllCleared() {
			after.Status = domain.NoDueComplete
		}
		change, err := domain.NewChange(EntityNoDueApplication, appID, ActionUpdate, &before, &after)
		if err != nil {
			return appID, err
		}
		apps[idx] = after
		res, err = s.commit(ctx, domain.KeyNoDueApplications, apps, []Change{change})
		if err != nil {
			return appID, err
		}
		updated = after
		return appID, nil
	})
	return updated, res, err
}
