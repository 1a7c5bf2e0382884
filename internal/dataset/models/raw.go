package models

// RawRecord is one row of a source file before cleaning: every cell is the
// string the file carried, untrimmed and uncoerced.
type RawRecord struct {
	CountryCode       string
	CountryName       string
	Year              string
	IncomeClass       string
	GaviSpec          string
	GaviSupported     string
	MarketSegment     string
	VaxTarget         string
	VaxDoses          string
	VaxFdCov          string
	HPVIntDoses       string
	HasVaxNatSchedule string
	FirstYearVaxIntro string
	TypePrimDelivVax  string
	AgeAdmVax         string
	SexAdmVax         string
	CervCanCrRate2022 string
}

// DtpRow is one row of a DTP comparator file (first- or last-dose), keyed by
// country-year for the merge onto HPV rows.
type DtpRow struct {
	CountryCode string
	Year        string
	DataSource  string
	Coverage    string
}
