package torrent

import (
	"net/url"
	"strconv"
	"strings"
)

// Magnet builds the magnet link for an artifact torrent. Web seeds let
// clients without peers fetch the full file over plain HTTPS, so every
// magnet link published by the registry carries the download endpoint and
// the IPFS gateway link as seeds.
func Magnet(info *Info, webSeeds []string, trackers []string) string {
	var b strings.Builder
	b.WriteString("magnet:?xt=urn:btih:")
	b.WriteString(info.InfoHashHex())

	b.WriteString("&dn=")
	b.WriteString(url.QueryEscape(info.Name))

	b.WriteString("&xl=")
	b.WriteString(strconv.FormatInt(info.Length, 10))

	for _, ws := range webSeeds {
		if ws == "" {
			continue
		}
		b.WriteString("&ws=")
		b.WriteString(url.QueryEscape(ws))
	}
	for _, tr := range trackers {
		if tr == "" {
			continue
		}
		b.WriteString("&tr=")
		b.WriteString(url.QueryEscape(tr))
	}
	return b.String()
}
