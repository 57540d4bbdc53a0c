package validation

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"

	"github.com/ehr/intake/pkg/tristate"
)

// DateLayout is the wire format of every date in the intake DTOs.
const DateLayout = "2006-01-02"

// DefaultRegion is used to parse phone numbers without a country code.
const DefaultRegion = "US"

var zipPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

var usStates = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true, "CT": true,
	"DE": true, "DC": true, "FL": true, "GA": true, "HI": true, "ID": true, "IL": true,
	"IN": true, "IA": true, "KS": true, "KY": true, "LA": true, "ME": true, "MD": true,
	"MA": true, "MI": true, "MN": true, "MS": true, "MO": true, "MT": true, "NE": true,
	"NV": true, "NH": true, "NJ": true, "NM": true, "NY": true, "NC": true, "ND": true,
	"OH": true, "OK": true, "OR": true, "PA": true, "RI": true, "SC": true, "SD": true,
	"TN": true, "TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true, "PR": true, "GU": true, "VI": true, "AS": true, "MP": true,
}

var now = time.Now

var customTags = map[string]validator.Func{
	"isodate":   isISODate,
	"notfuture": notFuture,
	"dateafter": dateAfter,
	"phone":     isPhone,
	"zip":       isZip,
	"usstate":   isUSState,
	"tristate":  isTriState,
	"json":      isJSON,
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// NormalizePhone parses raw in the default region and returns E.164 form.
func NormalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, DefaultRegion)
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", phonenumbers.ErrNotANumber
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func isISODate(fl validator.FieldLevel) bool {
	_, err := ParseDate(fl.Field().String())
	return err == nil
}

func notFuture(fl validator.FieldLevel) bool {
	d, err := ParseDate(fl.Field().String())
	if err != nil {
		return false
	}
	return !d.After(now())
}

// dateAfter checks the field is on or after the sibling named by the
// param. An unset or unparsable sibling passes; isodate reports it.
func dateAfter(fl validator.FieldLevel) bool {
	end, err := ParseDate(fl.Field().String())
	if err != nil {
		return false
	}
	sibling := fl.Parent().FieldByName(fl.Param())
	if !sibling.IsValid() {
		return true
	}
	if sibling.Kind() == reflect.Ptr {
		if sibling.IsNil() {
			return true
		}
		sibling = sibling.Elem()
	}
	if sibling.Kind() != reflect.String || sibling.String() == "" {
		return true
	}
	start, err := ParseDate(sibling.String())
	if err != nil {
		return true
	}
	return !end.Before(start)
}

func isPhone(fl validator.FieldLevel) bool {
	_, err := NormalizePhone(fl.Field().String())
	return err == nil
}

func isZip(fl validator.FieldLevel) bool {
	return zipPattern.MatchString(fl.Field().String())
}

func isUSState(fl validator.FieldLevel) bool {
	return usStates[strings.ToUpper(fl.Field().String())]
}

func isTriState(fl validator.FieldLevel) bool {
	return tristate.Value(fl.Field().String()).Valid()
}

func isJSON(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.String:
		return json.Valid([]byte(f.String()))
	case reflect.Slice:
		if f.Type().Elem().Kind() != reflect.Uint8 {
			return false
		}
		if f.Len() == 0 {
			return true
		}
		return json.Valid(f.Bytes())
	}
	return false
}
