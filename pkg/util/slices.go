package util

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/integrail/pagewalk/pkg/walk/dto"
)

// SliceToMap turns "key=value" entries into a map. An entry without "="
// maps to an empty value; later entries win.
func SliceToMap(slice []string) map[string]string {
	return lo.SliceToMap(slice, func(s string) (string, string) {
		key, value, _ := strings.Cut(s, "=")
		return strings.TrimSpace(key), value
	})
}

// Cookies builds browser cookies for domain from "name=value" entries, sorted by name.
func Cookies(slice []string, domain string) []dto.BrowserCookie {
	values := lo.OmitByKeys(SliceToMap(slice), []string{""})
	names := lo.Keys(values)
	sort.Strings(names)
	return lo.Map(names, func(name string, _ int) dto.BrowserCookie {
		return dto.BrowserCookie{
			Name:   name,
			Value:  values[name],
			Domain: domain,
			Path:   "/",
		}
	})
}
