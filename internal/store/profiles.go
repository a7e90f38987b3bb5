package store

import "context"

const profileColumns = `id, name, upgrades_allowed, cutoff, items, format_items,
	min_format_score, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (QualityProfile, error) {
	var p QualityProfile
	err := row.Scan(&p.ID, &p.Name, &p.UpgradesAllowed, &p.Cutoff, &p.Items, &p.FormatItems,
		&p.MinFormatScore, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// CreateQualityProfileParams holds the writable fields of a quality profile.
type CreateQualityProfileParams struct {
	Name            string
	UpgradesAllowed int64
	Cutoff          int64
	Items           string
	FormatItems     string
	MinFormatScore  int64
}

func (q *Queries) CreateQualityProfile(ctx context.Context, p CreateQualityProfileParams) (QualityProfile, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO quality_profiles (name, upgrades_allowed, cutoff, items, format_items, min_format_score)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.Name, p.UpgradesAllowed, p.Cutoff, p.Items, p.FormatItems, p.MinFormatScore)
	if err != nil {
		return QualityProfile{}, err
	}
	id, err := lastInsertID(res)
	if err != nil {
		return QualityProfile{}, err
	}
	return q.GetQualityProfile(ctx, id)
}

func (q *Queries) GetQualityProfile(ctx context.Context, id int64) (QualityProfile, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM quality_profiles WHERE id = ?`, id)
	return scanProfile(row)
}

func (q *Queries) ListQualityProfiles(ctx context.Context) ([]QualityProfile, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM quality_profiles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []QualityProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// UpdateQualityProfileParams holds the mutable fields of a quality profile.
type UpdateQualityProfileParams struct {
	ID              int64
	Name            string
	UpgradesAllowed int64
	Cutoff          int64
	Items           string
	FormatItems     string
	MinFormatScore  int64
}

func (q *Queries) UpdateQualityProfile(ctx context.Context, p UpdateQualityProfileParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE quality_profiles SET name = ?, upgrades_allowed = ?, cutoff = ?, items = ?,
			format_items = ?, min_format_score = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		p.Name, p.UpgradesAllowed, p.Cutoff, p.Items, p.FormatItems, p.MinFormatScore, p.ID)
	return err
}

func (q *Queries) DeleteQualityProfile(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM quality_profiles WHERE id = ?`, id)
	return err
}

// Custom formats.

func (q *Queries) CreateCustomFormat(ctx context.Context, name, specifications string) (CustomFormat, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO custom_formats (name, specifications) VALUES (?, ?)`, name, specifications)
	if err != nil {
		return CustomFormat{}, err
	}
	id, err := lastInsertID(res)
	if err != nil {
		return CustomFormat{}, err
	}
	return q.GetCustomFormat(ctx, id)
}

func (q *Queries) GetCustomFormat(ctx context.Context, id int64) (CustomFormat, error) {
	var f CustomFormat
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, specifications, created_at, updated_at FROM custom_formats WHERE id = ?`, id).
		Scan(&f.ID, &f.Name, &f.Specifications, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

func (q *Queries) ListCustomFormats(ctx context.Context) ([]CustomFormat, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name, specifications, created_at, updated_at FROM custom_formats ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var formats []CustomFormat
	for rows.Next() {
		var f CustomFormat
		if err := rows.Scan(&f.ID, &f.Name, &f.Specifications, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, rows.Err()
}

func (q *Queries) UpdateCustomFormat(ctx context.Context, id int64, name, specifications string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE custom_formats SET name = ?, specifications = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, name, specifications, id)
	return err
}

func (q *Queries) DeleteCustomFormat(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM custom_formats WHERE id = ?`, id)
	return err
}
