package ipfs

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultGateway is the public gateway used when the deployment does not
// run its own.
const DefaultGateway = "https://ipfs.io"

// ValidateCID applies shape checks to a content identifier before it is
// interpolated into RPC calls or links. It accepts CIDv0 (Qm..., base58)
// and lowercase base32 CIDv1, which covers everything our own node emits.
func ValidateCID(cid string) error {
	if cid == "" {
		return fmt.Errorf("empty CID")
	}
	if strings.ContainsAny(cid, "/?#%& \t\n") {
		return fmt.Errorf("malformed CID: %q", cid)
	}
	switch {
	case strings.HasPrefix(cid, "Qm") && len(cid) == 46:
		return nil
	case strings.HasPrefix(cid, "b") && len(cid) >= 46 && cid == strings.ToLower(cid):
		return nil
	}
	return fmt.Errorf("unrecognized CID format: %q", cid)
}

// GatewayLink builds the public HTTP link for a CID on the given gateway.
// The filename parameter sets the name browsers save the download as.
func GatewayLink(gateway, cid, filename string) (string, error) {
	if err := ValidateCID(cid); err != nil {
		return "", err
	}
	if gateway == "" {
		gateway = DefaultGateway
	}

	link := strings.TrimSuffix(gateway, "/") + "/ipfs/" + cid
	if filename != "" {
		link += "?filename=" + url.QueryEscape(filename)
	}
	return link, nil
}
