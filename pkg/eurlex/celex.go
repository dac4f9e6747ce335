package eurlex

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// Instrument codes end in _<year>_<number>, e.g. DORA_2022_2554 or EU_2025_301.
	instrumentCodePattern = regexp.MustCompile(`_(\d{2}|\d{4})_(\d{1,4})$`)
	celexPattern          = regexp.MustCompile(`^([1-9])(\d{4})([A-Z]{1,2})(\d{4})$`)
)

// CELEXFromCode derives a CELEX number from an instrument code of the form
// <PREFIX>_<YEAR>_<NUMBER>. Instruments are assumed to be regulations unless
// typeCode says otherwise.
//
// Example: DORA_2022_2554 -> "32022R2554"
func CELEXFromCode(instrumentCode string, typeCode DocumentTypeCode) (CELEXNumber, error) {
	match := instrumentCodePattern.FindStringSubmatch(strings.TrimSpace(instrumentCode))
	if match == nil {
		return CELEXNumber{}, fmt.Errorf("instrument code %q has no _<year>_<number> suffix", instrumentCode)
	}

	if typeCode == "" {
		typeCode = TypeRegulation
	}
	if _, err := typeCodeToELISlug(typeCode); err != nil {
		return CELEXNumber{}, err
	}

	return CELEXNumber{
		Sector:   SectorLegislation,
		Year:     normalizeYear(match[1]),
		TypeCode: typeCode,
		Number:   padCELEXNumber(match[2]),
	}, nil
}

// ParseCELEX parses a CELEX string such as "32024R1772".
func ParseCELEX(s string) (CELEXNumber, error) {
	match := celexPattern.FindStringSubmatch(strings.TrimSpace(s))
	if match == nil {
		return CELEXNumber{}, fmt.Errorf("invalid CELEX number %q", s)
	}
	return CELEXNumber{
		Sector:   DocumentSector(match[1]),
		Year:     match[2],
		TypeCode: DocumentTypeCode(match[3]),
		Number:   match[4],
	}, nil
}

// normalizeYear converts a 2-digit year to 4-digit.
// Uses 1958 as the cutoff (year the EU/EEC was founded):
// - Years >= 58 are interpreted as 19xx (e.g., "95" -> "1995")
// - Years < 58 are interpreted as 20xx (e.g., "16" -> "2016")
// 4-digit years pass through unchanged.
func normalizeYear(yearString string) string {
	if len(yearString) == 2 {
		yearValue, err := strconv.Atoi(yearString)
		if err != nil {
			return yearString
		}
		if yearValue >= 58 {
			return "19" + yearString
		}
		return "20" + yearString
	}
	return yearString
}

// padCELEXNumber pads a document number to 4 digits with leading zeros.
// Example: "301" -> "0301", "1" -> "0001"
func padCELEXNumber(numberString string) string {
	for len(numberString) < 4 {
		numberString = "0" + numberString
	}
	return numberString
}
