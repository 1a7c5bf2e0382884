// Package models defines the country-year record produced by cleaning and the
// ingest bookkeeping types around it.
package models

import (
	"time"

	id "vaxcov/pkg/domain"
)

// CountryYearRecord is one observation of the cleaned analysis dataset.
// Records are immutable once cleaned; re-running the cleaner over a cleaned
// record is a no-op.
type CountryYearRecord struct {
	CountryCode id.CountryCode `json:"country_code"`
	CountryName string         `json:"country_name"`
	Year        id.Year        `json:"year"`

	IncomeClass     id.IncomeClass   `json:"income_class"`
	IncomeClassLbl  string           `json:"income_class_lbl"`
	GaviSpec        string           `json:"gavi_spec"`
	GaviSupported   id.GaviSupport   `json:"gavi_supported"`
	MarketSegment   id.MarketSegment `json:"market_segment,omitempty"`
	VaxPricePerDose *float64         `json:"vax_price_per_dose,omitempty"`

	VaxTarget *float64    `json:"vax_target,omitempty"`
	VaxDoses  *float64    `json:"vax_doses,omitempty"`
	VaxFdCov  id.Coverage `json:"vax_fd_cov"`

	HPVIntDoses       id.IntroStatus `json:"HPV_INT_DOSES"`
	HasVaxNatSchedule *bool          `json:"has_vax_nat_schedule,omitempty"`
	FirstYearVaxIntro *int           `json:"first_year_vax_intro,omitempty"`
	TypePrimDelivVax  string         `json:"type_prim_deliv_vax,omitempty"`
	AgeAdmVax         string         `json:"age_adm_vax,omitempty"`
	SexAdmVax         id.Sex         `json:"sex_adm_vax,omitempty"`
	CervCanCrRate2022 *float64       `json:"cerv_can_cr_rate_2022,omitempty"`

	DtpDataSource   string   `json:"dtp_data_source,omitempty"`
	DtpDataSourceLd string   `json:"dtp_data_source_ld,omitempty"`
	DtpFdCov        *float64 `json:"dtp_fd_cov,omitempty"`
	DtpLdCov        *float64 `json:"dtp_ld_cov,omitempty"`

	// Derived analysis columns.
	GaviRegime          id.GaviRegime `json:"gavi_regime_it"`
	EverClassicGavi     bool          `json:"ever_classic_gavi"`
	EverSupportedByGavi bool          `json:"ever_supported_by_gavi"`
	HicFlag             bool          `json:"hic_flag"`
}

// Key identifies a record within the dataset.
type Key struct {
	CountryCode id.CountryCode
	Year        id.Year
}

// Key returns the record's dataset key.
func (r *CountryYearRecord) Key() Key {
	return Key{CountryCode: r.CountryCode, Year: r.Year}
}

// Mutation records one coding-rule rewrite of a cell, keyed to the record it
// changed. The audit trail is built from these.
type Mutation struct {
	Key      Key    `json:"key"`
	Column   string `json:"column"`
	Rule     string `json:"rule"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// DroppedRow records one excluded source row and the reason, using the raw
// cell values since dropped rows may not have valid keys.
type DroppedRow struct {
	CountryCode string `json:"country_code"`
	Year        string `json:"year"`
	Reason      string `json:"reason"`
}

// JobStatus tracks the lifecycle of an ingest job.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// IngestJob is one run of the cleaning pipeline over a set of source files.
type IngestJob struct {
	ID          string      `json:"id"`
	Status      JobStatus   `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  *time.Time  `json:"finished_at,omitempty"`
	Error       string      `json:"error,omitempty"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Diagnostics mirrors the counters the cleaning scripts print after each run.
type Diagnostics struct {
	RowsRead        int `json:"rows_read"`
	RowsKept        int `json:"rows_kept"`
	UniqueCountries int `json:"unique_countries"`

	// Drop reasons.
	DroppedOutOfWindow    int `json:"dropped_out_of_window"`
	DroppedMissingGavi    int `json:"dropped_missing_gavi_supported"`
	DroppedInvalidCountry int `json:"dropped_invalid_country_code"`
	DroppedDuplicateKey   int `json:"dropped_duplicate_key"`
	DroppedRowErrors      int `json:"dropped_row_errors"`

	// Resolver rule applications.
	RulePreIntroZero    int `json:"rule_pre_intro_zero"`   // rule A
	RulePostIntroFill   int `json:"rule_post_intro_fill"`  // rule B
	RuleUnknownIntroNA  int `json:"rule_unknown_intro_na"` // rule C
	RuleNoReportLabel   int `json:"rule_no_report_label"`  // rule D
	RuleIntroducedLabel int `json:"rule_introduced_label"` // rule E

	// DTP comparator merge.
	DtpFdMatched int `json:"dtp_fd_matched"`
	DtpLdMatched int `json:"dtp_ld_matched"`

	// Countries whose Gavi regime changed within the window, with change counts.
	RegimeTransitions map[string]int `json:"regime_transitions,omitempty"`
}
