package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"vaxcov/internal/dataset/models"
	dErrors "vaxcov/pkg/domain-errors"
)

// Format selects the delimiter of a source file.
type Format string

const (
	FormatCSV Format = "csv"
	FormatTSV Format = "tsv"
)

// ParseFormat validates a format label from a request.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "tsv":
		return FormatTSV, nil
	}
	return "", dErrors.New(dErrors.CodeBadRequest, "format must be csv or tsv")
}

func (f Format) comma() rune {
	if f == FormatTSV {
		return '\t'
	}
	return ','
}

// columnAliases maps source header spellings onto canonical column names.
// WHO coverage extracts use CODE/YEAR/NAME/COVERAGE; headers are compared
// after normalization (lowercase, spaces and hyphens collapsed to
// underscores), so "Alpha-3 code" and "alpha_3_code" coincide.
var columnAliases = map[string]string{
	"code":         "country_code",
	"alpha_3_code": "country_code",
	"name":         "country_name",
	"country":      "country_name",
	"vax_year":     "year",
	"coverage":     "vax_fd_cov",
	"first_d_cov":  "vax_fd_cov",
}

// requiredColumns must be present in an HPV source file; the list mirrors the
// columns the coding rules read.
var requiredColumns = []string{
	"country_code", "year", "gavi_supported", "vax_fd_cov",
	"first_year_vax_intro", "hpv_int_doses",
}

func canonicalColumn(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	if alias, ok := columnAliases[h]; ok {
		return alias
	}
	return h
}

// header indexes canonical column names into row positions.
type header map[string]int

func (h header) cell(row []string, column string) string {
	idx, ok := h[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func readHeader(rows *csv.Reader, required []string) (header, error) {
	first, err := rows.Read()
	if err == io.EOF {
		return nil, dErrors.New(dErrors.CodeBadRequest, "source file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	h := make(header, len(first))
	for i, raw := range first {
		col := canonicalColumn(raw)
		if _, dup := h[col]; !dup {
			h[col] = i
		}
	}

	var missing []string
	for _, col := range required {
		if _, ok := h[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest,
			fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")))
	}
	return h, nil
}

func newReader(r io.Reader, format Format) *csv.Reader {
	rows := csv.NewReader(r)
	rows.Comma = format.comma()
	// Source extracts occasionally carry ragged trailing cells.
	rows.FieldsPerRecord = -1
	return rows
}

// ReadRecords decodes an HPV country-year source file into raw records.
// Unknown columns are ignored; missing required columns abort the read.
func ReadRecords(r io.Reader, format Format) ([]models.RawRecord, error) {
	rows := newReader(r, format)
	h, err := readHeader(rows, requiredColumns)
	if err != nil {
		return nil, err
	}

	var out []models.RawRecord
	for {
		row, err := rows.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(out)+2, err)
		}
		out = append(out, models.RawRecord{
			CountryCode:       h.cell(row, "country_code"),
			CountryName:       h.cell(row, "country_name"),
			Year:              h.cell(row, "year"),
			IncomeClass:       h.cell(row, "income_class"),
			GaviSpec:          h.cell(row, "gavi_spec"),
			GaviSupported:     h.cell(row, "gavi_supported"),
			MarketSegment:     h.cell(row, "market_segment"),
			VaxTarget:         h.cell(row, "vax_target"),
			VaxDoses:          h.cell(row, "vax_doses"),
			VaxFdCov:          h.cell(row, "vax_fd_cov"),
			HPVIntDoses:       h.cell(row, "hpv_int_doses"),
			HasVaxNatSchedule: h.cell(row, "has_vax_nat_schedule"),
			FirstYearVaxIntro: h.cell(row, "first_year_vax_intro"),
			TypePrimDelivVax:  h.cell(row, "type_prim_deliv_vax"),
			AgeAdmVax:         h.cell(row, "age_adm_vax"),
			SexAdmVax:         h.cell(row, "sex_adm_vax"),
			CervCanCrRate2022: h.cell(row, "cerv_can_cr_rate_2022"),
		})
	}
}

// ReadDtp decodes a DTP comparator file. lastDose selects the third-dose
// variant whose columns carry the _ld suffix.
func ReadDtp(r io.Reader, format Format, lastDose bool) ([]models.DtpRow, error) {
	sourceCol, covCol := "dtp_data_source", "dtp_fd_cov"
	if lastDose {
		sourceCol, covCol = "dtp_data_source_ld", "dtp_ld_cov"
	}

	rows := newReader(r, format)
	h, err := readHeader(rows, []string{"country_code", "year", sourceCol, covCol})
	if err != nil {
		return nil, err
	}

	var out []models.DtpRow
	for {
		row, err := rows.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(out)+2, err)
		}
		out = append(out, models.DtpRow{
			CountryCode: h.cell(row, "country_code"),
			Year:        h.cell(row, "year"),
			DataSource:  h.cell(row, sourceCol),
			Coverage:    h.cell(row, covCol),
		})
	}
}
