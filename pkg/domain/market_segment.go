package domain

import (
	"strings"

	dErrors "vaxcov/pkg/domain-errors"
)

// MarketSegment is the vaccine procurement market segment assigned to a
// country for pricing purposes.
type MarketSegment string

const (
	SegmentGavi73  MarketSegment = "Gavi73"
	SegmentGavi731 MarketSegment = "gavi731"
	SegmentMICs4   MarketSegment = "MICs4"
	SegmentMICs5   MarketSegment = "MICs5"
	SegmentMICs6   MarketSegment = "MICs6"
	SegmentMICs7   MarketSegment = "MICs7"
	SegmentHIC     MarketSegment = "HIC"
	SegmentNC      MarketSegment = "NC"
)

var validSegments = map[MarketSegment]bool{
	SegmentGavi73:  true,
	SegmentGavi731: true,
	SegmentMICs4:   true,
	SegmentMICs5:   true,
	SegmentMICs6:   true,
	SegmentMICs7:   true,
	SegmentHIC:     true,
	SegmentNC:      true,
}

// segmentPrices is the per-dose HPV vaccine price (USD) by segment.
// NC (not classified) has no price.
var segmentPrices = map[MarketSegment]float64{
	SegmentGavi73:  2.9,
	SegmentGavi731: 2.9,
	SegmentMICs5:   2.9,
	SegmentMICs6:   4.5,
	SegmentMICs4:   20.125,
	SegmentMICs7:   23.375,
	SegmentHIC:     31,
}

// ParseMarketSegment validates a segment value from external input. The
// segment labels are matched case-insensitively but stored in their canonical
// mixed-case form.
func ParseMarketSegment(s string) (MarketSegment, error) {
	trimmed := strings.TrimSpace(s)
	for seg := range validSegments {
		if strings.EqualFold(trimmed, string(seg)) {
			return seg, nil
		}
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid market segment")
}

// IsValid checks if the segment is one of the supported enum values.
func (m MarketSegment) IsValid() bool {
	return validSegments[m]
}

// Price returns the per-dose vaccine price for the segment.
// The second return is false when the segment carries no price (NC).
func (m MarketSegment) Price() (float64, bool) {
	p, ok := segmentPrices[m]
	return p, ok
}

// String returns the string representation of the segment.
func (m MarketSegment) String() string {
	return string(m)
}
