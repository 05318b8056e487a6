package crawler

import "testing"

func TestSplitNameAndCountry(t *testing.T) {
	tests := []struct {
		raw, wantName, wantCountry string
	}{
		{"Architects GB", "Architects", "GB"},
		{"Architects", "Architects", ""},
		{"  Bring   Me The Horizon  GB ", "Bring Me The Horizon", "GB"},
		{"Kabát", "Kabát", ""},
		{"Gb", "Gb", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		name, country := SplitNameAndCountry(tt.raw)
		if name != tt.wantName || country != tt.wantCountry {
			t.Fatalf("SplitNameAndCountry(%q)=(%q,%q), want (%q,%q)", tt.raw, name, country, tt.wantName, tt.wantCountry)
		}
	}
}

func TestSanitizeTime(t *testing.T) {
	tests := map[string]string{
		"20:30":    "20:30",
		" 8:05 ":   "8:05",
		"TBA":      Placeholder,
		"tba":      Placeholder,
		"Tba":      Placeholder,
		"20:30:00": "",
		"8:30pm":   "",
		"":         "",
	}
	for in, want := range tests {
		if got := SanitizeTime(in); got != want {
			t.Fatalf("SanitizeTime(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestSanitizeStage(t *testing.T) {
	tests := map[string]string{
		"Blue  Stage":         "Blue Stage",
		"tba":                 Placeholder,
		"event-card__wrapper": "",
		"EVENT-CARD":          "",
		"   ":                 "",
	}
	for in, want := range tests {
		if got := SanitizeStage(in); got != want {
			t.Fatalf("SanitizeStage(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestExtractSlug(t *testing.T) {
	tests := map[string]string{
		"https://rockforpeople.cz/lineup/architects/": "architects",
		"https://www.novarock.at/en/artist/slipknot":  "slipknot",
		"https://www.novarock.at/":                    "",
		"::not a url":                                 "",
	}
	for in, want := range tests {
		if got := ExtractSlug(in); got != want {
			t.Fatalf("ExtractSlug(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestArtistDetailSparse(t *testing.T) {
	if !(ArtistDetail{Stage: Placeholder, Time: Placeholder}).Sparse() {
		t.Fatal("placeholder-only record should be sparse")
	}
	if (ArtistDetail{Day: "Thu 11. 6.", Stage: Placeholder, Time: Placeholder}).Sparse() {
		t.Fatal("record with a day is not sparse")
	}
	if (ArtistDetail{Stage: "Red Stage"}).Sparse() {
		t.Fatal("record with a stage is not sparse")
	}
}
