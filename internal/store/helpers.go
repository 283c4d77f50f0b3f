package store

import (
	"database/sql"
	"strings"

	"github.com/bouajo/aicoach/internal/models"
)

// userColumns is the shared column order for users rows. The SQLite and
// PostgreSQL migrations keep the same layout so scanning is identical.
const userColumns = "id, phone_number, state, language, name, age, height_cm, current_weight, target_weight, target_date, focus_areas, plan, created_at, updated_at"

// DetectDSNType classifies a DSN as "postgres" or "sqlite" so callers can
// pick the right backend from a single configuration value.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nilIfZeroInt returns nil for zero ints so unset profile fields stay NULL.
func nilIfZeroInt(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

// nilIfZeroFloat returns nil for zero floats so unset profile fields stay NULL.
func nilIfZeroFloat(f float64) interface{} {
	if f == 0 {
		return nil
	}
	return f
}

// userScanner abstracts sql.Row and sql.Rows for scanUser.
type userScanner interface {
	Scan(dest ...interface{}) error
}

// scanUser reads a full users row in userColumns order, mapping NULL
// profile columns back to zero values.
func scanUser(row userScanner) (*models.User, error) {
	var u models.User
	var state string
	var name, targetDate, focusAreas, plan sql.NullString
	var age, heightCM sql.NullInt64
	var currentWeight, targetWeight sql.NullFloat64
	err := row.Scan(
		&u.ID, &u.PhoneNumber, &state, &u.Language,
		&name, &age, &heightCM, &currentWeight, &targetWeight,
		&targetDate, &focusAreas, &plan,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.State = models.StateType(state)
	u.Name = name.String
	u.Age = int(age.Int64)
	u.HeightCM = int(heightCM.Int64)
	u.CurrentWeight = currentWeight.Float64
	u.TargetWeight = targetWeight.Float64
	u.TargetDate = targetDate.String
	u.FocusAreas = focusAreas.String
	u.Plan = plan.String
	return &u, nil
}
