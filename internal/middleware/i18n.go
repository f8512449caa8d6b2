package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type (
	localeKey  struct{}
	countryKey struct{}
)

// CountryLookup resolves an ISO country code for a client address.
type CountryLookup func(ip string) (string, error)

// supportedLocales lists the locales a job can be tagged with. The first
// entry is what the matcher falls back to.
var supportedLocales = []language.Tag{
	language.English,
	language.Indonesian,
	language.Spanish,
	language.French,
	language.German,
	language.Portuguese,
}

var localeMatcher = language.NewMatcher(supportedLocales)

// countryHeaders are set by the edge proxy, in order of trust.
var countryHeaders = []string{"CF-IPCountry", "X-Country-Code"}

// I18N negotiates the request locale and country. Both are captured into the
// job at submission so its logs and lifecycle events carry them.
func I18N(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	fallback, ok := matchLocale(defaultLocale)
	if !ok {
		fallback = "en"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := resolveCountry(r, lookup)
			locale := negotiateLocale(r, country, fallback)

			ctx := context.WithValue(r.Context(), localeKey{}, locale)
			if country != "" {
				ctx = context.WithValue(ctx, countryKey{}, country)
			}
			w.Header().Set("Content-Language", locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// negotiateLocale prefers X-Locale, then Accept-Language, then the most
// likely language of the caller's country.
func negotiateLocale(r *http.Request, country, fallback string) string {
	if loc, ok := matchLocale(r.Header.Get("X-Locale")); ok {
		return loc
	}
	if tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language")); err == nil && len(tags) > 0 {
		if loc, ok := matchTags(tags...); ok {
			return loc
		}
	}
	if country != "" {
		if base, conf := language.Make("und-" + country).Base(); conf != language.No {
			if loc, ok := matchTags(language.Make(base.String())); ok {
				return loc
			}
		}
	}
	return fallback
}

func matchLocale(raw string) (string, bool) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), "_", "-")
	if raw == "" {
		return "", false
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return "", false
	}
	return matchTags(tag)
}

func matchTags(tags ...language.Tag) (string, bool) {
	_, idx, conf := localeMatcher.Match(tags...)
	if conf == language.No {
		return "", false
	}
	base, _ := supportedLocales[idx].Base()
	return base.String(), true
}

// resolveCountry trusts edge headers first, then an explicit region in the
// locale headers, then the GeoIP lookup. RealIP has already rewritten
// RemoteAddr by the time this runs.
func resolveCountry(r *http.Request, lookup CountryLookup) string {
	for _, key := range countryHeaders {
		if cc := countryCode(r.Header.Get(key)); cc != "" {
			return cc
		}
	}
	for _, key := range []string{"X-Locale", "Accept-Language"} {
		if region := explicitRegion(r.Header.Get(key)); region != "" {
			return region
		}
	}
	if lookup == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	cc, err := lookup(host)
	if err != nil {
		return ""
	}
	return countryCode(cc)
}

// countryCode accepts two-letter codes only; "XX" and "T1" are the edge
// proxy's markers for unknown and Tor traffic.
func countryCode(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	if len(v) != 2 || v == "XX" || v == "T1" {
		return ""
	}
	for i := 0; i < 2; i++ {
		if v[i] < 'A' || v[i] > 'Z' {
			return ""
		}
	}
	return v
}

func explicitRegion(header string) string {
	tags, _, err := language.ParseAcceptLanguage(strings.ReplaceAll(header, "_", "-"))
	if err != nil {
		return ""
	}
	for _, tag := range tags {
		if region, conf := tag.Region(); conf == language.Exact {
			return region.String()
		}
	}
	return ""
}

// LocaleFromContext returns the negotiated locale, "en" when none was set.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(localeKey{}).(string); ok {
		return v
	}
	return "en"
}

func CountryFromContext(ctx context.Context) string {
	v, _ := ctx.Value(countryKey{}).(string)
	return v
}

func contextWithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}
