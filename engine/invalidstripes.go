package engine

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// invalidStripeRecordSize is the wire size of one (stripeIndex, chunkID,
// chunkVersion) record: three little-endian, fixed-width uint64s. spec.md
// §9 calls out the source's templated sizeof-based decode as endian- and
// width-fragile; this is the fixed replacement.
const invalidStripeRecordSize = 8 * 3

// DecodeInvalidStripes decodes the ancillary buffer a Stripe Reader
// attaches to a negative-status read completion into the list of bad
// stripes it names (spec §4.3). maxCount is numStripes+numRecoveryStripes;
// a longer list is a fatal integrity violation, not a recoverable error.
func DecodeInvalidStripes(buf []byte, maxCount int) ([]InvalidStripe, error) {
	if len(buf)%invalidStripeRecordSize != 0 {
		return nil, fmt.Errorf("invalid-stripe buffer length %d is not a multiple of %d", len(buf), invalidStripeRecordSize)
	}
	count := len(buf) / invalidStripeRecordSize
	if count > maxCount {
		return nil, ErrTooManyInvalidStripes
	}
	out := make([]InvalidStripe, count)
	for i := range out {
		rec := buf[i*invalidStripeRecordSize:]
		out[i] = InvalidStripe{
			StripeIndex:  int64(binary.LittleEndian.Uint64(rec[0:8])),
			ChunkID:      int64(binary.LittleEndian.Uint64(rec[8:16])),
			ChunkVersion: int64(binary.LittleEndian.Uint64(rec[16:24])),
		}
	}
	return out, nil
}

// EncodeInvalidStripes is the inverse of DecodeInvalidStripes, used by
// Stripe Reader implementations (and tests) to build the ancillary buffer.
func EncodeInvalidStripes(list []InvalidStripe) []byte {
	buf := make([]byte, len(list)*invalidStripeRecordSize)
	for i, s := range list {
		rec := buf[i*invalidStripeRecordSize:]
		binary.LittleEndian.PutUint64(rec[0:8], uint64(s.StripeIndex))
		binary.LittleEndian.PutUint64(rec[8:16], uint64(s.ChunkID))
		binary.LittleEndian.PutUint64(rec[16:24], uint64(s.ChunkVersion))
	}
	return buf
}

// FormatInvalidStripes renders the decoded list as the space-separated
// string the owner op carries for the metadata coordinator to act on, e.g.
// "2 101 4 5 104 4" for two bad stripes.
func FormatInvalidStripes(list []InvalidStripe) string {
	parts := make([]string, 0, len(list)*3)
	for _, s := range list {
		parts = append(parts,
			strconv.FormatInt(s.StripeIndex, 10),
			strconv.FormatInt(s.ChunkID, 10),
			strconv.FormatInt(s.ChunkVersion, 10),
		)
	}
	return strings.Join(parts, " ")
}
