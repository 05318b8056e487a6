// Package catalog talks to the Spotify Web API: it exchanges client
// credentials for a bearer token, searches artists by name and picks the
// best candidate for a band.
package catalog
