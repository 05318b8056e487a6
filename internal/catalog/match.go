package catalog

import "golang.org/x/text/cases"

// BestMatch prefers a result whose name equals name under case folding and
// otherwise takes the most popular result. Ties keep the earlier result.
func BestMatch(name string, artists []Artist) (Artist, bool) {
	if len(artists) == 0 {
		return Artist{}, false
	}

	folder := cases.Fold()
	want := folder.String(name)
	for _, a := range artists {
		if folder.String(a.Name) == want {
			return a, true
		}
	}

	best := artists[0]
	for _, a := range artists[1:] {
		if a.Popularity > best.Popularity {
			best = a
		}
	}
	return best, true
}
