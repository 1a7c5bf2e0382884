// Package cleaner normalizes raw country-year rows into analysis records.
//
// Row-level cleaning standardizes missing markers, coerces keys and numerics,
// drops rows outside the analysis window or without a Gavi support status,
// and delegates coverage coding to the resolver. Dataset-level passes derive
// the per-country flags that need the whole table (ever-classic-Gavi,
// ever-supported, regime transitions).
//
// Only the columns the coding rules depend on are hard-validated
// (country_code, year, gavi_supported, vax_fd_cov); the remaining columns
// pass through with their documented domains.
package cleaner

import (
	"sort"
	"strconv"
	"strings"

	"vaxcov/internal/dataset/models"
	"vaxcov/internal/dataset/resolver"
	id "vaxcov/pkg/domain"
	dErrors "vaxcov/pkg/domain-errors"
)

// DropReason says why a row was excluded from the cleaned dataset.
type DropReason string

const (
	DropNone           DropReason = ""
	DropOutOfWindow    DropReason = "out_of_window"
	DropMissingGavi    DropReason = "missing_gavi_supported"
	DropInvalidCountry DropReason = "invalid_country_code"
	DropRowError       DropReason = "row_error"

	// DropDuplicateKey is reported by the pipeline's dedupe pass; CleanRow
	// itself never returns it since it sees one row at a time.
	DropDuplicateKey DropReason = "duplicate_key"
)

// Result is the outcome of cleaning one raw row.
type Result struct {
	Record *models.CountryYearRecord
	Rules  resolver.Rules
	Drop   DropReason
	Err    error
}

// CleanRow normalizes one raw row. A non-empty Drop means the row is excluded;
// Err carries detail for DropRowError.
func CleanRow(raw models.RawRecord) Result {
	code, err := id.ParseCountryCode(raw.CountryCode)
	if err != nil {
		return Result{Drop: DropInvalidCountry, Err: err}
	}

	year, err := id.ParseYear(raw.Year)
	if err != nil {
		return Result{Drop: DropRowError, Err: err}
	}
	if !year.InWindow() {
		return Result{Drop: DropOutOfWindow}
	}

	if id.IsMissing(raw.GaviSupported) {
		return Result{Drop: DropMissingGavi}
	}
	support, err := id.ParseGaviSupport(raw.GaviSupported)
	if err != nil {
		return Result{Drop: DropRowError, Err: err}
	}

	coverage, _, err := id.ParseCoverage(raw.VaxFdCov)
	if err != nil {
		return Result{Drop: DropRowError, Err: dErrors.Wrap(err, dErrors.CodeValidation, "vax_fd_cov out of domain")}
	}

	introYear := parseOptionalInt(raw.FirstYearVaxIntro)
	status := id.NormalizeIntroStatus(raw.HPVIntDoses)

	outcome := resolver.Resolve(introYear, year, coverage, status)

	gaviSpec := strings.ToLower(strings.TrimSpace(toNA(raw.GaviSpec)))
	income, err := id.ParseIncomeClass(raw.IncomeClass)
	if err != nil {
		// Missing and unrecognized classes pass through uppercased so the
		// label column echoes what the source carried.
		income = id.IncomeClass(strings.ToUpper(strings.TrimSpace(toNA(raw.IncomeClass))))
	}

	rec := &models.CountryYearRecord{
		CountryCode:       code,
		CountryName:       id.HarmonizeCountryName(raw.CountryName),
		Year:              year,
		IncomeClass:       income,
		IncomeClassLbl:    incomeLabel(income),
		GaviSpec:          gaviSpec,
		GaviSupported:     support,
		VaxTarget:         parseOptionalFloat(raw.VaxTarget),
		VaxDoses:          parseOptionalFloat(raw.VaxDoses),
		VaxFdCov:          outcome.Coverage,
		HPVIntDoses:       outcome.Status,
		HasVaxNatSchedule: parseOptionalBool(raw.HasVaxNatSchedule),
		FirstYearVaxIntro: introYear,
		TypePrimDelivVax:  toNA(strings.TrimSpace(raw.TypePrimDelivVax)),
		AgeAdmVax:         toNA(strings.TrimSpace(raw.AgeAdmVax)),
		SexAdmVax:         passThroughSex(raw.SexAdmVax),
		CervCanCrRate2022: parseOptionalFloat(raw.CervCanCrRate2022),
		GaviRegime:        id.ClassifyGaviRegime(support, gaviSpec),
		HicFlag:           income.IsHigh(),
	}

	if seg, err := id.ParseMarketSegment(raw.MarketSegment); err == nil {
		rec.MarketSegment = seg
		if price, ok := seg.Price(); ok {
			rec.VaxPricePerDose = &price
		}
	} else if trimmed := strings.TrimSpace(toNA(raw.MarketSegment)); trimmed != "" {
		// Unknown segment labels pass through unpriced.
		rec.MarketSegment = id.MarketSegment(trimmed)
	}

	return Result{Record: rec, Rules: outcome.Rules}
}

// Finalize derives the per-country flags that need the full table. It mutates
// the records in place and leaves row order untouched.
func Finalize(records []*models.CountryYearRecord) {
	classic := make(map[id.CountryCode]bool)
	supported := make(map[id.CountryCode]bool)
	for _, r := range records {
		if r.GaviRegime == id.RegimeClassicGavi {
			classic[r.CountryCode] = true
		}
		if r.GaviSupported != id.GaviNotSupported {
			supported[r.CountryCode] = true
		}
	}
	for _, r := range records {
		r.EverClassicGavi = classic[r.CountryCode]
		r.EverSupportedByGavi = supported[r.CountryCode]
	}
}

// Transitions counts Gavi regime changes per country across years. Countries
// with a single regime for all observed years are omitted.
func Transitions(records []*models.CountryYearRecord) map[id.CountryCode]int {
	byCountry := make(map[id.CountryCode][]*models.CountryYearRecord)
	for _, r := range records {
		byCountry[r.CountryCode] = append(byCountry[r.CountryCode], r)
	}

	out := make(map[id.CountryCode]int)
	for code, rows := range byCountry {
		sort.Slice(rows, func(i, j int) bool { return rows[i].Year < rows[j].Year })
		changes := 0
		for i := 1; i < len(rows); i++ {
			if rows[i].GaviRegime != rows[i-1].GaviRegime {
				changes++
			}
		}
		if changes > 0 {
			out[code] = changes
		}
	}
	return out
}

// toNA standardizes blank/N-A markers to the empty string.
func toNA(s string) string {
	if id.IsMissing(s) {
		return ""
	}
	return s
}

func incomeLabel(c id.IncomeClass) string {
	if c == "" {
		return ""
	}
	return c.Label()
}

func parseOptionalInt(raw string) *int {
	if id.IsMissing(raw) {
		return nil
	}
	trimmed := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(trimmed); err == nil {
		return &n
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && f == float64(int(f)) {
		n := int(f)
		return &n
	}
	return nil
}

func parseOptionalFloat(raw string) *float64 {
	if id.IsMissing(raw) {
		return nil
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		return &f
	}
	return nil
}

func parseOptionalBool(raw string) *bool {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "yes", "true", "1", "y":
		b := true
		return &b
	case "no", "false", "0", "n":
		b := false
		return &b
	}
	return nil
}

func passThroughSex(raw string) id.Sex {
	if s, err := id.ParseSex(raw); err == nil {
		return s
	}
	return id.Sex(strings.ToLower(strings.TrimSpace(toNA(raw))))
}
