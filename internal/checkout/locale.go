package checkout

import "strings"

// gateway-supported locales, keyed by language tag prefix.
var locales = map[string]string{
	"en": "en_US",
	"nl": "nl_NL",
	"fr": "fr_FR",
	"de": "de_DE",
	"es": "es_ES",
	"ca": "ca_ES",
	"pt": "pt_PT",
	"it": "it_IT",
	"nb": "nb_NO",
	"sv": "sv_SE",
	"fi": "fi_FI",
	"da": "da_DK",
	"is": "is_IS",
	"hu": "hu_HU",
	"pl": "pl_PL",
	"lv": "lv_LV",
	"lt": "lt_LT",
}

// localeFor maps an order locale like "de-informal" or "pt_BR" onto a
// locale the gateway accepts, defaulting to en_US.
func localeFor(orderLocale string) string {
	tag := strings.ToLower(orderLocale)
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	if mapped, ok := locales[tag]; ok {
		return mapped
	}
	return "en_US"
}
