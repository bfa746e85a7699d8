package txfetch

import (
	"bytes"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// affiliateMarker tags the affiliate suffix the 0x API appends to swap calldata.
var affiliateMarker = []byte{0xfb, 0xc0, 0x19, 0xa7}

// Affiliate is the attribution decoded from a calldata suffix.
type Affiliate struct {
	Address   string
	QuoteDate *time.Time
}

// DecodeAffiliate looks for the last affiliate marker in calldata and decodes the affiliate
// address word and quote timestamp word that follow it. ok is false when no complete suffix exists.
func DecodeAffiliate(calldata []byte) (Affiliate, bool) {
	pos := bytes.LastIndex(calldata, affiliateMarker)
	if pos < 0 {
		return Affiliate{}, false
	}
	suffix := calldata[pos+len(affiliateMarker):]
	if len(suffix) < 2*common.HashLength {
		return Affiliate{}, false
	}

	out := Affiliate{
		Address: lowerHex(common.BytesToAddress(suffix[:common.HashLength])),
	}
	ts := new(big.Int).SetBytes(suffix[common.HashLength : 2*common.HashLength])
	if ts.Sign() > 0 && ts.IsInt64() {
		quote := time.Unix(ts.Int64(), 0).UTC()
		out.QuoteDate = &quote
	}
	return out, true
}
