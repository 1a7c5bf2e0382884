package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vaxcov/internal/dataset/models"
	id "vaxcov/pkg/domain"
	"vaxcov/pkg/platform/sentinel"
	txcontext "vaxcov/pkg/platform/tx"
)

// PostgresStore persists the cleaned dataset in PostgreSQL.
// This store is pure I/O; the coding rules belong to the cleaner and resolver.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed dataset store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// EnsureSchema creates the dataset tables if they do not exist. vax_fd_cov is
// nullable; NULL encodes the explicit insufficient-information marker, never a
// silently missing value.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS country_year_records (
			country_code           CHAR(3)      NOT NULL,
			year                   INT          NOT NULL,
			country_name           TEXT         NOT NULL DEFAULT '',
			income_class           TEXT         NOT NULL DEFAULT '',
			income_class_lbl       TEXT         NOT NULL DEFAULT '',
			gavi_spec              TEXT         NOT NULL DEFAULT '',
			gavi_supported         TEXT         NOT NULL,
			market_segment         TEXT         NOT NULL DEFAULT '',
			vax_price_per_dose     NUMERIC,
			vax_target             NUMERIC,
			vax_doses              NUMERIC,
			vax_fd_cov             NUMERIC,
			hpv_int_doses          TEXT         NOT NULL DEFAULT '',
			has_vax_nat_schedule   BOOLEAN,
			first_year_vax_intro   INT,
			type_prim_deliv_vax    TEXT         NOT NULL DEFAULT '',
			age_adm_vax            TEXT         NOT NULL DEFAULT '',
			sex_adm_vax            TEXT         NOT NULL DEFAULT '',
			cerv_can_cr_rate_2022  NUMERIC,
			dtp_data_source        TEXT         NOT NULL DEFAULT '',
			dtp_data_source_ld     TEXT         NOT NULL DEFAULT '',
			dtp_fd_cov             NUMERIC,
			dtp_ld_cov             NUMERIC,
			gavi_regime            TEXT         NOT NULL DEFAULT '',
			ever_classic_gavi      BOOLEAN      NOT NULL DEFAULT FALSE,
			ever_supported_by_gavi BOOLEAN      NOT NULL DEFAULT FALSE,
			hic_flag               BOOLEAN      NOT NULL DEFAULT FALSE,
			PRIMARY KEY (country_code, year)
		);
		CREATE TABLE IF NOT EXISTS ingest_jobs (
			id          UUID        PRIMARY KEY,
			status      TEXT        NOT NULL,
			started_at  TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			error       TEXT        NOT NULL DEFAULT '',
			diagnostics JSONB       NOT NULL DEFAULT '{}'
		);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure dataset schema: %w", err)
	}
	return nil
}

const upsertRecordQuery = `
	INSERT INTO country_year_records (
		country_code, year, country_name, income_class, income_class_lbl,
		gavi_spec, gavi_supported, market_segment, vax_price_per_dose,
		vax_target, vax_doses, vax_fd_cov, hpv_int_doses, has_vax_nat_schedule,
		first_year_vax_intro, type_prim_deliv_vax, age_adm_vax, sex_adm_vax,
		cerv_can_cr_rate_2022, dtp_data_source, dtp_data_source_ld, dtp_fd_cov,
		dtp_ld_cov, gavi_regime, ever_classic_gavi, ever_supported_by_gavi, hic_flag
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
	)
	ON CONFLICT (country_code, year) DO UPDATE SET
		country_name = EXCLUDED.country_name,
		income_class = EXCLUDED.income_class,
		income_class_lbl = EXCLUDED.income_class_lbl,
		gavi_spec = EXCLUDED.gavi_spec,
		gavi_supported = EXCLUDED.gavi_supported,
		market_segment = EXCLUDED.market_segment,
		vax_price_per_dose = EXCLUDED.vax_price_per_dose,
		vax_target = EXCLUDED.vax_target,
		vax_doses = EXCLUDED.vax_doses,
		vax_fd_cov = EXCLUDED.vax_fd_cov,
		hpv_int_doses = EXCLUDED.hpv_int_doses,
		has_vax_nat_schedule = EXCLUDED.has_vax_nat_schedule,
		first_year_vax_intro = EXCLUDED.first_year_vax_intro,
		type_prim_deliv_vax = EXCLUDED.type_prim_deliv_vax,
		age_adm_vax = EXCLUDED.age_adm_vax,
		sex_adm_vax = EXCLUDED.sex_adm_vax,
		cerv_can_cr_rate_2022 = EXCLUDED.cerv_can_cr_rate_2022,
		dtp_data_source = EXCLUDED.dtp_data_source,
		dtp_data_source_ld = EXCLUDED.dtp_data_source_ld,
		dtp_fd_cov = EXCLUDED.dtp_fd_cov,
		dtp_ld_cov = EXCLUDED.dtp_ld_cov,
		gavi_regime = EXCLUDED.gavi_regime,
		ever_classic_gavi = EXCLUDED.ever_classic_gavi,
		ever_supported_by_gavi = EXCLUDED.ever_supported_by_gavi,
		hic_flag = EXCLUDED.hic_flag
`

// UpsertRecords writes a batch inside one transaction unless the caller
// already put one in context via pkg/platform/tx.
func (s *PostgresStore) UpsertRecords(ctx context.Context, records []*models.CountryYearRecord) error {
	if len(records) == 0 {
		return nil
	}

	if _, ok := txcontext.From(ctx); ok {
		return s.upsertAll(ctx, s.execer(ctx), records)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert transaction: %w", err)
	}
	if err := s.upsertAll(ctx, tx, records); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) upsertAll(ctx context.Context, exec dbExecutor, records []*models.CountryYearRecord) error {
	for _, r := range records {
		if _, err := exec.ExecContext(ctx, upsertRecordQuery,
			string(r.CountryCode),
			int(r.Year),
			r.CountryName,
			string(r.IncomeClass),
			r.IncomeClassLbl,
			r.GaviSpec,
			string(r.GaviSupported),
			string(r.MarketSegment),
			nullFloat(r.VaxPricePerDose),
			nullFloat(r.VaxTarget),
			nullFloat(r.VaxDoses),
			coverageToNull(r.VaxFdCov),
			string(r.HPVIntDoses),
			nullBool(r.HasVaxNatSchedule),
			nullInt(r.FirstYearVaxIntro),
			r.TypePrimDelivVax,
			r.AgeAdmVax,
			string(r.SexAdmVax),
			nullFloat(r.CervCanCrRate2022),
			r.DtpDataSource,
			r.DtpDataSourceLd,
			nullFloat(r.DtpFdCov),
			nullFloat(r.DtpLdCov),
			string(r.GaviRegime),
			r.EverClassicGavi,
			r.EverSupportedByGavi,
			r.HicFlag,
		); err != nil {
			return fmt.Errorf("upsert record %s/%d: %w", r.CountryCode, r.Year, err)
		}
	}
	return nil
}

const selectRecordColumns = `
	country_code, year, country_name, income_class, income_class_lbl,
	gavi_spec, gavi_supported, market_segment, vax_price_per_dose,
	vax_target, vax_doses, vax_fd_cov, hpv_int_doses, has_vax_nat_schedule,
	first_year_vax_intro, type_prim_deliv_vax, age_adm_vax, sex_adm_vax,
	cerv_can_cr_rate_2022, dtp_data_source, dtp_data_source_ld, dtp_fd_cov,
	dtp_ld_cov, gavi_regime, ever_classic_gavi, ever_supported_by_gavi, hic_flag
`

func (s *PostgresStore) GetRecord(ctx context.Context, key models.Key) (*models.CountryYearRecord, error) {
	query := `SELECT ` + selectRecordColumns + `
		FROM country_year_records
		WHERE country_code = $1 AND year = $2
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, string(key.CountryCode), int(key.Year)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get record %s/%d: %w", key.CountryCode, key.Year, err)
	}
	return record, nil
}

func (s *PostgresStore) ListByCountry(ctx context.Context, code id.CountryCode) ([]*models.CountryYearRecord, error) {
	query := `SELECT ` + selectRecordColumns + `
		FROM country_year_records
		WHERE country_code = $1
		ORDER BY year
	`
	rows, err := s.db.QueryContext(ctx, query, string(code))
	if err != nil {
		return nil, fmt.Errorf("list records for %s: %w", code, err)
	}
	defer rows.Close()

	records := make([]*models.CountryYearRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record for %s: %w", code, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records for %s: %w", code, err)
	}
	return records, nil
}

func (s *PostgresStore) ListByYear(ctx context.Context, year id.Year) ([]*models.CountryYearRecord, error) {
	query := `SELECT ` + selectRecordColumns + `
		FROM country_year_records
		WHERE year = $1
		ORDER BY country_code
	`
	rows, err := s.db.QueryContext(ctx, query, int(year))
	if err != nil {
		return nil, fmt.Errorf("list records for %d: %w", year, err)
	}
	defer rows.Close()

	records := make([]*models.CountryYearRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record for %d: %w", year, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records for %d: %w", year, err)
	}
	return records, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.CountryYearRecord, error) {
	query := `SELECT ` + selectRecordColumns + `
		FROM country_year_records
		ORDER BY country_code, year
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list all records: %w", err)
	}
	defer rows.Close()

	records := make([]*models.CountryYearRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.IngestJob) error {
	diagnostics, err := json.Marshal(job.Diagnostics)
	if err != nil {
		return fmt.Errorf("marshal job diagnostics: %w", err)
	}
	query := `
		INSERT INTO ingest_jobs (id, status, started_at, finished_at, error, diagnostics)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		job.ID, string(job.Status), job.StartedAt, nullTime(job.FinishedAt), job.Error, diagnostics)
	if err != nil {
		return fmt.Errorf("create ingest job: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *models.IngestJob) error {
	diagnostics, err := json.Marshal(job.Diagnostics)
	if err != nil {
		return fmt.Errorf("marshal job diagnostics: %w", err)
	}
	query := `
		UPDATE ingest_jobs
		SET status = $2, finished_at = $3, error = $4, diagnostics = $5
		WHERE id = $1
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		job.ID, string(job.Status), nullTime(job.FinishedAt), job.Error, diagnostics)
	if err != nil {
		return fmt.Errorf("update ingest job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update ingest job: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*models.IngestJob, error) {
	query := `
		SELECT id, status, started_at, finished_at, error, diagnostics
		FROM ingest_jobs
		WHERE id = $1
	`
	var (
		job         models.IngestJob
		status      string
		finishedAt  sql.NullTime
		diagnostics []byte
	)
	err := s.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID, &status, &job.StartedAt, &finishedAt, &job.Error, &diagnostics)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get ingest job: %w", err)
	}
	job.Status = models.JobStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		job.FinishedAt = &t
	}
	if err := json.Unmarshal(diagnostics, &job.Diagnostics); err != nil {
		return nil, fmt.Errorf("unmarshal job diagnostics: %w", err)
	}
	return &job, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.CountryYearRecord, error) {
	var (
		r            models.CountryYearRecord
		code         string
		year         int
		income       string
		support      string
		segment      string
		pricePerDose sql.NullFloat64
		target       sql.NullFloat64
		doses        sql.NullFloat64
		coverage     sql.NullFloat64
		status       string
		natSchedule  sql.NullBool
		introYear    sql.NullInt64
		sex          string
		crRate       sql.NullFloat64
		dtpFd, dtpLd sql.NullFloat64
		regime       string
	)
	err := row.Scan(
		&code, &year, &r.CountryName, &income, &r.IncomeClassLbl,
		&r.GaviSpec, &support, &segment, &pricePerDose,
		&target, &doses, &coverage, &status, &natSchedule,
		&introYear, &r.TypePrimDelivVax, &r.AgeAdmVax, &sex,
		&crRate, &r.DtpDataSource, &r.DtpDataSourceLd, &dtpFd,
		&dtpLd, &regime, &r.EverClassicGavi, &r.EverSupportedByGavi, &r.HicFlag,
	)
	if err != nil {
		return nil, err
	}

	r.CountryCode = id.CountryCode(code)
	r.Year = id.Year(year)
	r.IncomeClass = id.IncomeClass(income)
	r.GaviSupported = id.GaviSupport(support)
	r.MarketSegment = id.MarketSegment(segment)
	r.HPVIntDoses = id.IntroStatus(status)
	r.SexAdmVax = id.Sex(sex)
	r.GaviRegime = id.GaviRegime(regime)
	r.VaxPricePerDose = floatPtr(pricePerDose)
	r.VaxTarget = floatPtr(target)
	r.VaxDoses = floatPtr(doses)
	r.CervCanCrRate2022 = floatPtr(crRate)
	r.DtpFdCov = floatPtr(dtpFd)
	r.DtpLdCov = floatPtr(dtpLd)
	if natSchedule.Valid {
		b := natSchedule.Bool
		r.HasVaxNatSchedule = &b
	}
	if introYear.Valid {
		n := int(introYear.Int64)
		r.FirstYearVaxIntro = &n
	}

	if coverage.Valid {
		c, err := id.CoverageOf(coverage.Float64)
		if err != nil {
			return nil, fmt.Errorf("stored coverage for %s/%d: %w", code, year, err)
		}
		r.VaxFdCov = c
	} else {
		r.VaxFdCov = id.CoverageUnknown()
	}
	return &r, nil
}

// coverageToNull maps the insufficient-information marker to SQL NULL.
func coverageToNull(c id.Coverage) sql.NullFloat64 {
	if v, ok := c.Value(); ok {
		return sql.NullFloat64{Float64: v, Valid: true}
	}
	return sql.NullFloat64{}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}
