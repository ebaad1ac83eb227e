package detection

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jengzang/watchdog-backend-go/internal/models"
)

// Identity is the partition key of a transmitter: PLMN triple plus eNodeB id
type Identity struct {
	MCC      int
	MNC      int
	TAC      int
	EnodebID int64
}

// IdentityOf extracts the identity of a sighting
func IdentityOf(s models.Sighting) Identity {
	return Identity{MCC: s.MCC, MNC: s.MNC, TAC: s.TAC, EnodebID: s.EnodebID}
}

// PLMN returns the network identity triple in mcc_mnc_tac form
func (id Identity) PLMN() string {
	return fmt.Sprintf("%d_%d_%d", id.MCC, id.MNC, id.TAC)
}

func (id Identity) String() string {
	return fmt.Sprintf("%s_%d", id.PLMN(), id.EnodebID)
}

// Less orders identities by MCC, MNC, TAC, then eNodeB id
func (id Identity) Less(other Identity) bool {
	if id.MCC != other.MCC {
		return id.MCC < other.MCC
	}
	if id.MNC != other.MNC {
		return id.MNC < other.MNC
	}
	if id.TAC != other.TAC {
		return id.TAC < other.TAC
	}
	return id.EnodebID < other.EnodebID
}

// Key addresses one cluster: an identity and, when the identity was split by position,
// the index of the part
type Key struct {
	Identity Identity
	Part     int
}

func (k Key) String() string {
	if k.Part == 0 {
		return k.Identity.String()
	}
	return fmt.Sprintf("%s~%d", k.Identity, k.Part)
}

// ParseKey parses the mcc_mnc_tac_enodeb[~part] form produced by Key.String
func ParseKey(s string) (Key, error) {
	var key Key

	base, part, hasPart := strings.Cut(s, "~")
	if hasPart {
		p, err := strconv.Atoi(part)
		if err != nil || p < 0 {
			return key, fmt.Errorf("%w: bad part in key %q", ErrInvalidInput, s)
		}
		key.Part = p
	}

	fields := strings.Split(base, "_")
	if len(fields) != 4 {
		return key, fmt.Errorf("%w: key %q must be mcc_mnc_tac_enodeb", ErrInvalidInput, s)
	}

	ints := make([]int64, 4)
	for i, f := range fields {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return key, fmt.Errorf("%w: bad field %q in key %q", ErrInvalidInput, f, s)
		}
		ints[i] = v
	}

	key.Identity = Identity{
		MCC:      int(ints[0]),
		MNC:      int(ints[1]),
		TAC:      int(ints[2]),
		EnodebID: ints[3],
	}
	return key, nil
}
