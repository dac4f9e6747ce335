package eurlex

import (
	"fmt"
	"strings"
)

// ELI type slugs used in the URI path.
const (
	eliSlugRegulation = "reg"
	eliSlugDirective  = "dir"
	eliSlugDecision   = "dec"
)

// ELIFromCELEX creates an ELI URI for a legislation CELEX number.
//
// ELI format: http://data.europa.eu/eli/{type}/{year}/{number}/oj
// Example: 32022R2554 -> http://data.europa.eu/eli/reg/2022/2554/oj
func ELIFromCELEX(celexNumber CELEXNumber) (ELIURI, error) {
	if celexNumber.IsZero() {
		return ELIURI{}, fmt.Errorf("CELEX number cannot be empty")
	}
	if celexNumber.Sector != SectorLegislation {
		return ELIURI{}, fmt.Errorf("ELI is only derived for legislation, got sector %s", celexNumber.Sector)
	}

	typeSlug, err := typeCodeToELISlug(celexNumber.TypeCode)
	if err != nil {
		return ELIURI{}, err
	}

	// ELI uses unpadded numbers.
	number := strings.TrimLeft(celexNumber.Number, "0")
	if number == "" {
		return ELIURI{}, fmt.Errorf("CELEX number %s has no document number", celexNumber)
	}

	return ELIURI{
		TypeSlug: typeSlug,
		Year:     celexNumber.Year,
		Number:   number,
	}, nil
}

// typeCodeToELISlug maps a CELEX document type to the ELI type path segment.
func typeCodeToELISlug(typeCode DocumentTypeCode) (string, error) {
	switch typeCode {
	case TypeRegulation:
		return eliSlugRegulation, nil
	case TypeDirective:
		return eliSlugDirective, nil
	case TypeDecision:
		return eliSlugDecision, nil
	default:
		return "", fmt.Errorf("unsupported document type for ELI generation: %s", typeCode)
	}
}

// Resolve returns the CELEX number and ELI URI for an instrument. An explicit
// CELEX string takes precedence over the one derived from the code.
func Resolve(instrumentCode, explicitCELEX string) (CELEXNumber, ELIURI, error) {
	var (
		celexNumber CELEXNumber
		err         error
	)
	if explicitCELEX != "" {
		celexNumber, err = ParseCELEX(explicitCELEX)
	} else {
		celexNumber, err = CELEXFromCode(instrumentCode, TypeRegulation)
	}
	if err != nil {
		return CELEXNumber{}, ELIURI{}, err
	}

	eliURI, err := ELIFromCELEX(celexNumber)
	if err != nil {
		return celexNumber, ELIURI{}, err
	}
	return celexNumber, eliURI, nil
}
