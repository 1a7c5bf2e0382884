// Package ingest runs the cleaning pipeline over decoded source files.
//
// Rows are independent, so cleaning fans out over a bounded worker pool;
// everything that needs the whole table (duplicate keys, DTP merge, per-country
// flags) runs sequentially afterwards. Output row order is stable by input
// position.
package ingest

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"vaxcov/internal/dataset/cleaner"
	"vaxcov/internal/dataset/models"
	id "vaxcov/pkg/domain"
	dErrors "vaxcov/pkg/domain-errors"
	strutil "vaxcov/pkg/platform/strings"
)

// Input is the decoded source material of one ingest run. Dtp slices may be
// empty when no comparator files were supplied.
type Input struct {
	HPV   []models.RawRecord
	DtpFd []models.DtpRow
	DtpLd []models.DtpRow
}

// Output is the cleaned dataset plus run diagnostics. Mutations and Drops
// carry the row-level detail behind the diagnostic counters for auditing.
type Output struct {
	Records     []*models.CountryYearRecord
	Diagnostics models.Diagnostics
	Mutations   []models.Mutation
	Drops       []models.DroppedRow
}

// Rule names as reported in mutations, audit events, and metric labels.
const (
	RulePreIntroZero    = "pre_intro_zero"
	RulePostIntroFill   = "post_intro_fill"
	RuleUnknownIntroNA  = "unknown_intro_na"
	RuleNoReportLabel   = "no_report_label"
	RuleIntroducedLabel = "introduced_label"
)

// Pipeline cleans raw rows into analysis records.
type Pipeline struct {
	workers int
}

// New builds a pipeline with a bounded row-cleaning pool.
func New(workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{workers: workers}
}

// Run executes the full pipeline: concurrent row cleaning, duplicate-key
// dedupe (keep first), dataset-level flag derivation, then the DTP merge.
func (p *Pipeline) Run(ctx context.Context, in Input) (Output, error) {
	results := make([]cleaner.Result, len(in.HPV))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, raw := range in.HPV {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = cleaner.CleanRow(raw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Output{}, fmt.Errorf("clean rows: %w", err)
	}

	var out Output
	out.Diagnostics.RowsRead = len(in.HPV)

	seen := make(map[models.Key]bool)
	var codes []string
	for i, res := range results {
		raw := in.HPV[i]
		switch res.Drop {
		case cleaner.DropOutOfWindow:
			out.Diagnostics.DroppedOutOfWindow++
			out.dropRow(raw, res.Drop)
			continue
		case cleaner.DropMissingGavi:
			out.Diagnostics.DroppedMissingGavi++
			out.dropRow(raw, res.Drop)
			continue
		case cleaner.DropInvalidCountry:
			out.Diagnostics.DroppedInvalidCountry++
			out.dropRow(raw, res.Drop)
			continue
		case cleaner.DropRowError:
			out.Diagnostics.DroppedRowErrors++
			out.dropRow(raw, res.Drop)
			continue
		}

		key := res.Record.Key()
		if seen[key] {
			out.Diagnostics.DroppedDuplicateKey++
			out.dropRow(raw, cleaner.DropDuplicateKey)
			continue
		}
		seen[key] = true

		tallyRules(&out.Diagnostics, res)
		out.recordMutations(raw, res)
		out.Records = append(out.Records, res.Record)
		codes = append(codes, res.Record.CountryCode.String())
	}

	out.Diagnostics.RowsKept = len(out.Records)
	out.Diagnostics.UniqueCountries = len(strutil.DedupeAndTrim(codes))

	cleaner.Finalize(out.Records)
	if transitions := cleaner.Transitions(out.Records); len(transitions) > 0 {
		out.Diagnostics.RegimeTransitions = make(map[string]int, len(transitions))
		for code, n := range transitions {
			out.Diagnostics.RegimeTransitions[code.String()] = n
		}
	}

	if err := p.mergeDtp(&out, in.DtpFd, false); err != nil {
		return Output{}, err
	}
	if err := p.mergeDtp(&out, in.DtpLd, true); err != nil {
		return Output{}, err
	}

	return out, nil
}

func (o *Output) dropRow(raw models.RawRecord, reason cleaner.DropReason) {
	o.Drops = append(o.Drops, models.DroppedRow{
		CountryCode: raw.CountryCode,
		Year:        raw.Year,
		Reason:      string(reason),
	})
}

// recordMutations captures the cell rewrites behind each fired rule so the
// audit trail can reconstruct raw-to-published value changes.
func (o *Output) recordMutations(raw models.RawRecord, res cleaner.Result) {
	key := res.Record.Key()
	add := func(column, rule, oldValue, newValue string) {
		o.Mutations = append(o.Mutations, models.Mutation{
			Key:      key,
			Column:   column,
			Rule:     rule,
			OldValue: oldValue,
			NewValue: newValue,
		})
	}

	if res.Rules.PreIntroZero {
		add("vax_fd_cov", RulePreIntroZero, raw.VaxFdCov, "0")
	}
	if res.Rules.PostIntroFill {
		add("vax_fd_cov", RulePostIntroFill, raw.VaxFdCov, "0")
	}
	if res.Rules.UnknownIntroNA {
		add("vax_fd_cov", RuleUnknownIntroNA, raw.VaxFdCov, id.InsufficientInfo)
	}
	if res.Rules.NoReportLabel {
		add("hpv_int_doses", RuleNoReportLabel, raw.HPVIntDoses, string(id.IntroNoReport))
	}
	if res.Rules.IntroducedLabel {
		add("hpv_int_doses", RuleIntroducedLabel, raw.HPVIntDoses, string(id.IntroIntroduced))
	}
}

func tallyRules(d *models.Diagnostics, res cleaner.Result) {
	if res.Rules.PreIntroZero {
		d.RulePreIntroZero++
	}
	if res.Rules.PostIntroFill {
		d.RulePostIntroFill++
	}
	if res.Rules.UnknownIntroNA {
		d.RuleUnknownIntroNA++
	}
	if res.Rules.NoReportLabel {
		d.RuleNoReportLabel++
	}
	if res.Rules.IntroducedLabel {
		d.RuleIntroducedLabel++
	}
}

// mergeDtp left-joins DTP coverage onto the HPV rows by (country_code, year).
// The join is many-to-one: duplicate DTP keys abort the run.
func (p *Pipeline) mergeDtp(out *Output, rows []models.DtpRow, lastDose bool) error {
	if len(rows) == 0 {
		return nil
	}

	type dtpValue struct {
		source   string
		coverage *float64
	}
	byKey := make(map[models.Key]dtpValue, len(rows))
	for _, row := range rows {
		code, err := id.ParseCountryCode(row.CountryCode)
		if err != nil {
			continue
		}
		year, err := id.ParseYear(row.Year)
		if err != nil {
			continue
		}
		key := models.Key{CountryCode: code, Year: year}
		if _, dup := byKey[key]; dup {
			return dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("duplicate DTP key %s/%d violates many-to-one merge", code, year))
		}
		byKey[key] = dtpValue{
			source:   row.DataSource,
			coverage: parseDtpCoverage(row.Coverage),
		}
	}

	matched := 0
	for _, rec := range out.Records {
		v, ok := byKey[rec.Key()]
		if !ok {
			continue
		}
		matched++
		if lastDose {
			rec.DtpDataSourceLd = v.source
			rec.DtpLdCov = v.coverage
		} else {
			rec.DtpDataSource = v.source
			rec.DtpFdCov = v.coverage
		}
	}

	if lastDose {
		out.Diagnostics.DtpLdMatched = matched
	} else {
		out.Diagnostics.DtpFdMatched = matched
	}
	return nil
}

func parseDtpCoverage(raw string) *float64 {
	c, ok, err := id.ParseCoverage(raw)
	if err != nil || !ok {
		return nil
	}
	v, _ := c.Value()
	return &v
}
