package snapshot

import (
	"errors"

	"github.com/gagliardetto/solana-go"

	"gigadex/domain/account"
	"gigadex/infra/accountstore"
)

type Source interface {
	Get(key solana.PublicKey) (account.Update, error)
}

// Load reads the last persisted copy of each tracked account. Accounts
// never persisted are left out.
func Load(src Source, keys Keys) ([]account.Update, error) {
	out := make([]account.Update, 0, numRoles)
	for _, key := range keys.List() {
		u, err := src.Get(key)
		if errors.Is(err, accountstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}
