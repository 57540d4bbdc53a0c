package web

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/gorilla/schema"

	"github.com/ehr/intake/internal/platform/middleware"
)

// newDecoder maps dotted form names ("primaryAddress.zipCode",
// "phones.0.number") onto the JSON names of the step DTOs.
func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.SetAliasTag("json")
	d.IgnoreUnknownKeys(true)
	d.ZeroEmpty(true)
	return d
}

// formValues returns the posted values with control fields removed and
// every value sanitised.
func formValues(form url.Values) url.Values {
	out := make(url.Values, len(form))
	for k, vs := range form {
		if strings.HasPrefix(k, "_") {
			continue
		}
		clean := make([]string, len(vs))
		for i, v := range vs {
			clean[i] = strings.TrimSpace(middleware.SanitizeString(v))
		}
		out[k] = clean
	}
	return out
}

// action is the button the user pressed: save, or a list edit such as
// "add:phones" or "remove:phones:1".
type action struct {
	kind  string
	list  string
	index int
}

func parseAction(raw string) (action, error) {
	if raw == "" || raw == "save" {
		return action{kind: "save"}, nil
	}
	parts := strings.Split(raw, ":")
	switch {
	case parts[0] == "add" && len(parts) == 2:
		return action{kind: "add", list: parts[1]}, nil
	case parts[0] == "remove" && len(parts) == 3:
		i, err := strconv.Atoi(parts[2])
		if err != nil || i < 0 {
			return action{}, fmt.Errorf("invalid row index %q", parts[2])
		}
		return action{kind: "remove", list: parts[1], index: i}, nil
	}
	return action{}, fmt.Errorf("unknown action %q", raw)
}

// pruneEmpty sets optional sub-forms that were posted blank back to nil so
// they read as absent rather than as invalid.
func pruneEmpty(v any) {
	walkStructPointers(reflect.ValueOf(v), func(f reflect.Value) {
		if !f.IsNil() && f.Elem().IsZero() {
			f.Set(reflect.Zero(f.Type()))
		}
	})
}

// fillEmpty allocates every nil sub-form so templates can render blank
// inputs for it.
func fillEmpty(v any) {
	walkStructPointers(reflect.ValueOf(v), func(f reflect.Value) {
		if f.IsNil() {
			f.Set(reflect.New(f.Type().Elem()))
		}
	})
}

// walkStructPointers calls fn on every pointer-to-struct field reachable
// from v, including those inside slices of structs.
func walkStructPointers(v reflect.Value, fn func(reflect.Value)) {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			f := v.Field(i)
			if !f.CanSet() {
				continue
			}
			if f.Kind() == reflect.Pointer && f.Type().Elem().Kind() == reflect.Struct && !isLeaf(f.Type().Elem()) {
				fn(f)
			}
			walkStructPointers(f, fn)
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			walkStructPointers(v.Index(i), fn)
		}
	}
}

// isLeaf reports struct types rendered as a single value, such as
// time.Time.
func isLeaf(t reflect.Type) bool {
	return t.PkgPath() == "time"
}
