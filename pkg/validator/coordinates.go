package validator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrNotNumeric indicates a coordinate could not be parsed as a number
var ErrNotNumeric = errors.New("all coordinates must be numbers")

// Coordinates is a validated latitude/longitude pair
type Coordinates struct {
	Lat float64 `validate:"latitude"`
	Lng float64 `validate:"longitude"`
}

var structValidator = validator.New()

// ValidateCoordinates checks that lat and lng are within WGS84 range
func ValidateCoordinates(lat, lng float64) error {
	if err := structValidator.Struct(Coordinates{Lat: lat, Lng: lng}); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%s out of range", strings.ToLower(verrs[0].Field()))
		}
		return err
	}
	return nil
}

// ParseCoordinates parses and range-checks a latitude/longitude pair given as text
func ParseCoordinates(latStr, lngStr string) (Coordinates, error) {
	lat, err := parseNumber(latStr)
	if err != nil {
		return Coordinates{}, err
	}
	lng, err := parseNumber(lngStr)
	if err != nil {
		return Coordinates{}, err
	}
	if err := ValidateCoordinates(lat, lng); err != nil {
		return Coordinates{}, err
	}
	return Coordinates{Lat: lat, Lng: lng}, nil
}

// ParseOptionalNumber parses s, returning nil for an empty string
func ParseOptionalNumber(s string) (*float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	f, err := parseNumber(s)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func parseNumber(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, ErrNotNumeric
	}
	return f, nil
}
