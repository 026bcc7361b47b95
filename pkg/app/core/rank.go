package core

import "github.com/ethereum/go-ethereum/common"

// TopK is the size of the beneficiary ranking buffer.
const TopK = 10

// Owners returns the addresses currently holding a positive balance of the
// asset, in first-acquisition order. The holder sequence never shrinks, so
// this scan is linear in historical holders, not current owners; trimming
// stale entries would change the iteration order the ranking tie-break
// depends on.
func (l *Ledger) Owners(id AssetID) []common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var owners []common.Address
	for _, addr := range l.holders[id] {
		if l.balances[id][addr] > 0 {
			owners = append(owners, addr)
		}
	}
	return owners
}

// TopBeneficiaries returns up to TopK current owners ranked by balance,
// descending. Candidates are scanned in first-acquisition order and inserted
// at the first slot holding a strictly smaller balance, so equal balances
// keep acquisition order: the earlier-acquired holder ranks higher, including
// at the rank-10 cutoff.
func (l *Ledger) TopBeneficiaries(id AssetID) ([]common.Address, []uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var (
		addrs [TopK]common.Address
		bals  [TopK]uint64
		n     int
	)

	for _, addr := range l.holders[id] {
		bal := l.balances[id][addr]
		if bal == 0 {
			continue
		}
		for i := 0; i < TopK; i++ {
			if bals[i] >= bal {
				continue
			}
			// Shift the tail down one slot, dropping the last entry.
			copy(bals[i+1:], bals[i:TopK-1])
			copy(addrs[i+1:], addrs[i:TopK-1])
			bals[i] = bal
			addrs[i] = addr
			if n < TopK {
				n++
			}
			break
		}
	}

	return append([]common.Address(nil), addrs[:n]...), append([]uint64(nil), bals[:n]...)
}
