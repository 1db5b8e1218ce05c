package dispute

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/dwarvesf/escrow-backend/internal/model"
)

const (
	SelectionRoundRobin = "round_robin"
	SelectionHash       = "hash"
)

// selectPanel picks size consecutive arbitrators from the pool, skipping the
// dispute's parties. The starting offset moves with every round so a
// reassignment draws a different panel whenever the pool allows it.
func selectPanel(pool []string, d *model.Dispute, round, size, quorum int, selection string) ([]string, error) {
	eligible := make([]string, 0, len(pool))
	for _, a := range pool {
		if _, isParty := d.PartyOf(a); !isParty {
			eligible = append(eligible, a)
		}
	}
	if size > len(eligible) {
		size = len(eligible)
	}
	if size < quorum || size == 0 {
		return nil, errors.Errorf("arbitrator pool of %d cannot seat a panel for quorum %d", len(eligible), quorum)
	}

	var offset uint64
	switch selection {
	case SelectionHash:
		digest := crypto.Keccak256([]byte(fmt.Sprintf("%d:%s:%s:%d", d.ID, d.Domain, d.BizID, round)))
		offset = binary.BigEndian.Uint64(digest[:8])
	default:
		offset = (d.ID - 1 + uint64(round-1)) * uint64(size)
	}

	panel := make([]string, size)
	for i := range panel {
		panel[i] = eligible[(offset+uint64(i))%uint64(len(eligible))]
	}
	return panel, nil
}
