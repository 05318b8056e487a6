package catalog

import "testing"

func TestBestMatch(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		artists []Artist
		wantID  string
		wantOK  bool
	}{
		{name: "no results", query: "Nobody", wantOK: false},
		{
			name:  "exact name ignores case",
			query: "architects",
			artists: []Artist{
				{ID: "x", Name: "Architects of Doom", Popularity: 90},
				{ID: "a", Name: "Architects", Popularity: 70},
			},
			wantID: "a", wantOK: true,
		},
		{
			name:  "highest popularity otherwise",
			query: "Bring Me",
			artists: []Artist{
				{ID: "1", Name: "Bring Me The Horizon", Popularity: 80},
				{ID: "2", Name: "Bring Me Back", Popularity: 85},
			},
			wantID: "2", wantOK: true,
		},
		{
			name:  "first wins ties",
			query: "Tie",
			artists: []Artist{
				{ID: "1", Name: "Tie A", Popularity: 50},
				{ID: "2", Name: "Tie B", Popularity: 50},
			},
			wantID: "1", wantOK: true,
		},
		{
			name:    "unicode folding",
			query:   "KABÁT",
			artists: []Artist{{ID: "k", Name: "Kabát", Popularity: 40}, {ID: "z", Name: "Other", Popularity: 99}},
			wantID:  "k", wantOK: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BestMatch(tt.query, tt.artists)
			if ok != tt.wantOK || got.ID != tt.wantID {
				t.Fatalf("BestMatch=%q,%v want %q,%v", got.ID, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}
