package badger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/poiesic/hnindex/core"
)

// Key prefixes for different data types
const (
	ledgerPrefix       = "ledger"
	runRecordKey       = "run:last"
	vectorIndexPrefix  = "vidx"
	vectorRecordPrefix = "vrec"
)

// makeLedgerKey generates a key for an item's processed marker.
func makeLedgerKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", ledgerPrefix, id))
}

// parseLedgerKey extracts the item id from a ledger key.
func parseLedgerKey(key []byte) (core.ID, error) {
	raw, ok := strings.CutPrefix(string(key), ledgerPrefix+":")
	if !ok {
		return 0, fmt.Errorf("not a ledger key: %q", key)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return core.ID(id), nil
}

// makeIndexSpecKey generates the key holding a vector index's spec.
func makeIndexSpecKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", vectorIndexPrefix, name))
}

// makeVectorKeyPrefix generates the prefix shared by every record of an index.
// Format: prefix:len(name):name:
// The length keeps "hn" from prefixing the records of "hn:old".
func makeVectorKeyPrefix(name string) []byte {
	return []byte(fmt.Sprintf("%s:%d:%s:", vectorRecordPrefix, len(name), name))
}

// makeVectorKey generates a key for one record of an index.
// Format: prefix:len(name):name:vectorID
func makeVectorKey(name, vectorID string) []byte {
	prefix := makeVectorKeyPrefix(name)
	buf := make([]byte, len(prefix)+len(vectorID))
	offset := copy(buf, prefix)
	copy(buf[offset:], vectorID)
	return buf
}
