package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"lawnwatch/internal/types"
)

// TrainingSampleRepository persists prediction feedback. Samples are
// append-only; there is no update or delete path.
type TrainingSampleRepository struct {
	db DBTX
}

func NewTrainingSampleRepository(db DBTX) *TrainingSampleRepository {
	return &TrainingSampleRepository{db: db}
}

// Create inserts a sample. The weather reading is stored as JSONB.
func (r *TrainingSampleRepository) Create(ctx context.Context, s types.TrainingSample) error {
	weather, err := json.Marshal(s.Weather)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to encode sample weather", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO training_samples
		   (id, treatment_type, effectiveness, weather_conditions, data_quality, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, string(s.TreatmentType), s.Effectiveness, weather, s.DataQuality, s.Confidence, s.Timestamp,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert training sample", err)
	}
	return nil
}

// FindMany returns samples matching filter, newest first. A non-positive
// limit returns every match.
func (r *TrainingSampleRepository) FindMany(ctx context.Context, filter types.SampleFilter, limit int) ([]types.TrainingSample, error) {
	query, args := buildSampleQuery(filter, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query training samples", err)
	}
	defer rows.Close()

	var out []types.TrainingSample
	for rows.Next() {
		var (
			s         types.TrainingSample
			treatment string
			weather   []byte
		)
		if err := rows.Scan(&s.ID, &treatment, &s.Effectiveness, &weather, &s.DataQuality, &s.Confidence, &s.Timestamp); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan training sample", err)
		}
		if err := json.Unmarshal(weather, &s.Weather); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to decode sample weather", err)
		}
		s.TreatmentType = types.TreatmentType(treatment)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating training samples", err)
	}
	return out, nil
}

func buildSampleQuery(filter types.SampleFilter, limit int) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if filter.TreatmentType != "" {
		add("treatment_type = $%d", string(filter.TreatmentType))
	}
	if filter.MinDataQuality > 0 {
		add("data_quality >= $%d", filter.MinDataQuality)
	}
	if filter.Since != nil {
		add("created_at >= $%d", *filter.Since)
	}

	var b strings.Builder
	b.WriteString(`SELECT id, treatment_type, effectiveness, weather_conditions, data_quality, confidence, created_at
		 FROM training_samples`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC")
	if limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}
