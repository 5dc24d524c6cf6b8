package postgres

import (
	"context"
	"fmt"

	"github.com/ermey-enterprises/marketalert"
	"github.com/ermey-enterprises/marketalert/schedule"
)

// LoadSchedule returns the single schedule row.
func (s *Store) LoadSchedule(ctx context.Context) (*schedule.Definition, error) {
	m := new(scheduleModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", scheduleRowID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, marketalert.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("marketalert/postgres: load schedule: %w", err)
	}
	return fromScheduleModel(m), nil
}

// SaveSchedule upserts the single schedule row.
func (s *Store) SaveSchedule(ctx context.Context, d *schedule.Definition) error {
	m := toScheduleModel(d)
	_, err := s.db.NewInsert().Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("expression = EXCLUDED.expression").
		Set("timezone = EXCLUDED.timezone").
		Set("last_run_at = EXCLUDED.last_run_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("marketalert/postgres: save schedule: %w", err)
	}
	return nil
}
