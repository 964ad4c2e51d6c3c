package checkout

import "testing"

func TestLocaleFor(t *testing.T) {
	cases := map[string]string{
		"de":          "de_DE",
		"de-informal": "de_DE",
		"pt_PT":       "pt_PT",
		"pt":          "pt_PT",
		"EN":          "en_US",
		"":            "en_US",
		"xx":          "en_US",
		"nl":          "nl_NL",
	}
	for in, want := range cases {
		if got := localeFor(in); got != want {
			t.Errorf("localeFor(%q) = %q, want %q", in, got, want)
		}
	}
}
