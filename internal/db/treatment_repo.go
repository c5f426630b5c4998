package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"lawnwatch/internal/types"
)

const treatmentColumns = `id, user_id, lawn_id, treatment_type, latitude, longitude, COALESCE(timezone, ''), scheduled_date`

// TreatmentRepository reads the schedule owned by the lawn-care application.
// LawnWatch never writes to it.
type TreatmentRepository struct {
	db DBTX
}

func NewTreatmentRepository(db DBTX) *TreatmentRepository {
	return &TreatmentRepository{db: db}
}

// GetTreatmentContext loads one treatment. Returns ErrCodeNotFoundTreatment
// when no row matches.
func (r *TreatmentRepository) GetTreatmentContext(ctx context.Context, treatmentID string) (*types.ScheduledTreatment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+treatmentColumns+`
		 FROM scheduled_treatments
		 WHERE id = $1`,
		treatmentID,
	)

	t, err := scanTreatment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundTreatment, "treatment not found", nil,
				map[string]any{"treatment_id": treatmentID})
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load treatment", err)
	}
	return t, nil
}

// ListUpcoming returns scheduled treatments whose date falls in [from, to),
// ordered by date.
func (r *TreatmentRepository) ListUpcoming(ctx context.Context, from, to time.Time) ([]types.ScheduledTreatment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+treatmentColumns+`
		 FROM scheduled_treatments
		 WHERE status = 'scheduled' AND scheduled_date >= $1 AND scheduled_date < $2
		 ORDER BY scheduled_date, id`,
		from, to,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list upcoming treatments", err)
	}
	defer rows.Close()

	var out []types.ScheduledTreatment
	for rows.Next() {
		t, err := scanTreatment(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan treatment", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating treatments", err)
	}
	return out, nil
}

func scanTreatment(row pgx.Row) (*types.ScheduledTreatment, error) {
	var (
		t         types.ScheduledTreatment
		treatment string
	)
	err := row.Scan(&t.ID, &t.UserID, &t.LawnID, &treatment,
		&t.Location.Lat, &t.Location.Lon, &t.Location.Timezone, &t.ScheduledDate)
	if err != nil {
		return nil, err
	}
	t.TreatmentType = types.TreatmentType(treatment)
	return &t, nil
}
