package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/permitdata/ahj-registry-api/internal/models"
)

// ahjSelect joins the code columns against the enum lookup so callers see
// text values instead of lookup ids.
const ahjSelect = `SELECT a.id, a.ahj_uuid, a.name, a.description, a.url,
       COALESCE(lv.value, '') AS level_code,
       COALESCE(bc.value, '') AS building_code,
       COALESCE(ec.value, '') AS electric_code,
       COALESCE(fc.value, '') AS fire_code,
       COALESCE(rc.value, '') AS residential_code,
       COALESCE(wc.value, '') AS wind_code,
       a.building_code_notes, a.electric_code_notes, a.fire_code_notes,
       a.address_line1, a.city, a.county, a.state_province, a.zip_postal_code,
       a.created_at, a.updated_at
FROM ahjs a
LEFT JOIN enum_values lv ON lv.id = a.level_code
LEFT JOIN enum_values bc ON bc.id = a.building_code
LEFT JOIN enum_values ec ON ec.id = a.electric_code
LEFT JOIN enum_values fc ON fc.id = a.fire_code
LEFT JOIN enum_values rc ON rc.id = a.residential_code
LEFT JOIN enum_values wc ON wc.id = a.wind_code`

var ahjSortColumns = map[string]string{
	"name":           "a.name",
	"city":           "a.city",
	"state_province": "a.state_province",
	"created_at":     "a.created_at",
}

// AHJRepository reads and writes authority records and their children.
type AHJRepository struct {
	db *sqlx.DB
}

// NewAHJRepository constructs the repository.
func NewAHJRepository(db *sqlx.DB) *AHJRepository {
	return &AHJRepository{db: db}
}

// Create inserts a new authority shell. Code fields start unset and are
// populated through the edit workflow.
func (r *AHJRepository) Create(ctx context.Context, ahj *models.AHJ) error {
	const query = `INSERT INTO ahjs
	(ahj_uuid, name, description, url, building_code_notes, electric_code_notes, fire_code_notes,
	 address_line1, city, county, state_province, zip_postal_code, created_at, updated_at)
	VALUES (:ahj_uuid, :name, :description, :url, :building_code_notes, :electric_code_notes, :fire_code_notes,
	 :address_line1, :city, :county, :state_province, :zip_postal_code, NOW(), NOW())
	RETURNING id`
	rows, err := sqlx.NamedQueryContext(ctx, r.db, query, ahj)
	if err != nil {
		return fmt.Errorf("create ahj: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&ahj.ID); err != nil {
			return fmt.Errorf("scan ahj id: %w", err)
		}
	}
	return rows.Err()
}

// GetByID fetches a single authority.
func (r *AHJRepository) GetByID(ctx context.Context, id int64) (*models.AHJ, error) {
	var ahj models.AHJ
	if err := r.db.GetContext(ctx, &ahj, ahjSelect+` WHERE a.id = $1`, id); err != nil {
		return nil, err
	}
	return &ahj, nil
}

// Search returns a page of authorities matching the filter plus the total
// match count.
func (r *AHJRepository) Search(ctx context.Context, filter models.AHJFilter) ([]models.AHJ, int, error) {
	where, args := buildAHJConditions(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM ahjs a
LEFT JOIN enum_values lv ON lv.id = a.level_code
LEFT JOIN enum_values bc ON bc.id = a.building_code
LEFT JOIN enum_values ec ON ec.id = a.electric_code
LEFT JOIN enum_values fc ON fc.id = a.fire_code` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count ahjs: %w", err)
	}

	sortColumn, ok := ahjSortColumns[filter.SortBy]
	if !ok {
		sortColumn = "a.name"
	}
	sortOrder := "ASC"
	if strings.EqualFold(filter.SortOrder, "desc") {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := fmt.Sprintf("%s%s ORDER BY %s %s LIMIT %d OFFSET %d",
		ahjSelect, where, sortColumn, sortOrder, pageSize, (page-1)*pageSize)

	var ahjs []models.AHJ
	if err := r.db.SelectContext(ctx, &ahjs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("search ahjs: %w", err)
	}
	return ahjs, total, nil
}

// ListForExport returns every authority matching the filter without paging.
func (r *AHJRepository) ListForExport(ctx context.Context, filter models.AHJFilter) ([]models.AHJ, error) {
	where, args := buildAHJConditions(filter)
	query := ahjSelect + where + " ORDER BY a.name ASC"
	var ahjs []models.AHJ
	if err := r.db.SelectContext(ctx, &ahjs, query, args...); err != nil {
		return nil, fmt.Errorf("export ahjs: %w", err)
	}
	return ahjs, nil
}

// GetDetail fetches an authority together with its confirmed child records.
func (r *AHJRepository) GetDetail(ctx context.Context, id int64) (*models.AHJDetail, error) {
	ahj, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &models.AHJDetail{AHJ: *ahj}

	const contactQuery = `SELECT c.id, c.parent_table, c.parent_id, c.first_name, c.middle_name, c.last_name,
       c.home_phone, c.mobile_phone, c.work_phone, c.email, c.title, c.url, c.description, c.contact_timezone,
       ct.value AS contact_type, pm.value AS preferred_contact_method, c.contact_status
FROM contacts c
LEFT JOIN enum_values ct ON ct.id = c.contact_type
LEFT JOIN enum_values pm ON pm.id = c.preferred_contact_method
WHERE c.parent_table = 'AHJ' AND c.parent_id = $1 AND c.contact_status IS TRUE
ORDER BY c.id`
	if err := r.db.SelectContext(ctx, &detail.Contacts, contactQuery, id); err != nil {
		return nil, fmt.Errorf("load contacts: %w", err)
	}

	const inspectionQuery = `SELECT i.id, i.ahj_id, i.name, i.notes, i.description, i.file_folder_url,
       it.value AS inspection_type, i.technician_required, i.inspection_status
FROM ahj_inspections i
LEFT JOIN enum_values it ON it.id = i.inspection_type
WHERE i.ahj_id = $1 AND i.inspection_status IS TRUE
ORDER BY i.id`
	if err := r.db.SelectContext(ctx, &detail.Inspections, inspectionQuery, id); err != nil {
		return nil, fmt.Errorf("load inspections: %w", err)
	}

	const feeQuery = `SELECT f.id, f.ahj_id, f.fee_structure_uuid, f.name,
       ft.value AS fee_structure_type, f.description, f.fee_structure_status
FROM fee_structures f
LEFT JOIN enum_values ft ON ft.id = f.fee_structure_type
WHERE f.ahj_id = $1 AND f.fee_structure_status IS TRUE
ORDER BY f.id`
	if err := r.db.SelectContext(ctx, &detail.FeeStructures, feeQuery, id); err != nil {
		return nil, fmt.Errorf("load fee structures: %w", err)
	}

	const reviewQuery = `SELECT e.id, e.ahj_id, e.description,
       et.value AS engineering_review_type, rl.value AS requirement_level, e.requirement_notes,
       st.value AS stamp_type, e.review_status
FROM engineering_review_requirements e
LEFT JOIN enum_values et ON et.id = e.engineering_review_type
LEFT JOIN enum_values rl ON rl.id = e.requirement_level
LEFT JOIN enum_values st ON st.id = e.stamp_type
WHERE e.ahj_id = $1 AND e.review_status IS TRUE
ORDER BY e.id`
	if err := r.db.SelectContext(ctx, &detail.EngineeringReviewRequirements, reviewQuery, id); err != nil {
		return nil, fmt.Errorf("load engineering reviews: %w", err)
	}

	docs, err := r.listMethodUses(ctx, "ahj_document_submission_method_uses", id)
	if err != nil {
		return nil, fmt.Errorf("load document submission methods: %w", err)
	}
	detail.DocumentSubmissionMethods = docs

	permits, err := r.listMethodUses(ctx, "ahj_permit_issue_method_uses", id)
	if err != nil {
		return nil, fmt.Errorf("load permit issue methods: %w", err)
	}
	detail.PermitIssueMethods = permits

	return detail, nil
}

func (r *AHJRepository) listMethodUses(ctx context.Context, table string, ahjID int64) ([]models.MethodUse, error) {
	query := fmt.Sprintf(`SELECT m.id, m.ahj_id, ev.value AS method, m.method_status
FROM %s m
LEFT JOIN enum_values ev ON ev.id = m.method
WHERE m.ahj_id = $1 AND m.method_status IS TRUE
ORDER BY m.id`, table)
	var uses []models.MethodUse
	if err := r.db.SelectContext(ctx, &uses, query, ahjID); err != nil {
		return nil, err
	}
	return uses, nil
}

func buildAHJConditions(filter models.AHJFilter) (string, []interface{}) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 6)

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(a.name ILIKE $%d OR a.city ILIKE $%d OR a.county ILIKE $%d OR a.zip_postal_code ILIKE $%d)", n, n, n, n))
	}
	if filter.StateProvince != "" {
		args = append(args, filter.StateProvince)
		conditions = append(conditions, fmt.Sprintf("a.state_province = $%d", len(args)))
	}
	if filter.BuildingCode != "" {
		args = append(args, filter.BuildingCode)
		conditions = append(conditions, fmt.Sprintf("bc.value = $%d", len(args)))
	}
	if filter.ElectricCode != "" {
		args = append(args, filter.ElectricCode)
		conditions = append(conditions, fmt.Sprintf("ec.value = $%d", len(args)))
	}
	if filter.FireCode != "" {
		args = append(args, filter.FireCode)
		conditions = append(conditions, fmt.Sprintf("fc.value = $%d", len(args)))
	}
	if filter.LevelCode != "" {
		args = append(args, filter.LevelCode)
		conditions = append(conditions, fmt.Sprintf("lv.value = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
