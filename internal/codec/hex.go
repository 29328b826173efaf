package codec

import (
	"encoding/hex"
	"fmt"

	"github.com/dogebridge/dogebridge/internal/config"
)

func decodeHexStrict(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrMalformed, err)
	}
	return b, nil
}

// EncodeHex is the inverse of decodeHexStrict, used by the RPC client when
// submitting a signed transaction.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}
