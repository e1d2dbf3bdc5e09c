package i18n

import "testing"

func TestGetCatalogResolvesLocales(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		locale string
		want   string
	}{
		{name: "empty falls back to base", locale: "", want: "en-US"},
		{name: "exact base", locale: "en-US", want: "en-US"},
		{name: "english variant", locale: "en-GB", want: "en-US"},
		{name: "portuguese base", locale: "pt", want: "pt-BR"},
		{name: "exact brazilian portuguese", locale: "pt-BR", want: "pt-BR"},
		{name: "unsupported falls back to base", locale: "fr-FR", want: "en-US"},
		{name: "garbage falls back to base", locale: "not-a-locale", want: "en-US"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := GetCatalog(tc.locale).Locale(); got != tc.want {
				t.Fatalf("GetCatalog(%q).Locale() = %q, want %q", tc.locale, got, tc.want)
			}
		})
	}
}

func TestFormatRendersMetadata(t *testing.T) {
	t.Parallel()

	cat := GetCatalog("en-US")
	got := cat.Format(CodeInsufficientFunds, map[string]string{
		"Balance":  "100",
		"Required": "5000",
	})
	want := "Not enough coins: have 100, need 5000"
	if got != want {
		t.Fatalf("Format = %q, want %q", got, want)
	}
}

func TestFormatUnknownCodeReturnsCode(t *testing.T) {
	t.Parallel()

	if got := GetCatalog("en-US").Format("NO_SUCH_CODE", nil); got != "NO_SUCH_CODE" {
		t.Fatalf("Format = %q, want code fallback", got)
	}
}

func TestFormatNilMetadataRendersEmptyFields(t *testing.T) {
	t.Parallel()

	got := GetCatalog("en-US").Format(CodeCooldownActive, nil)
	want := "You need to wait  before doing that again"
	if got != want {
		t.Fatalf("Format = %q, want %q", got, want)
	}
}

func TestCatalogsShareCodeSet(t *testing.T) {
	t.Parallel()

	for code := range enUSCatalog.messages {
		if _, ok := ptBRCatalog.messages[code]; !ok {
			t.Fatalf("pt-BR catalog missing code %s", code)
		}
	}
	for code := range ptBRCatalog.messages {
		if _, ok := enUSCatalog.messages[code]; !ok {
			t.Fatalf("en-US catalog missing code %s", code)
		}
	}
}
