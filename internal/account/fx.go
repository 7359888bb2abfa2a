package account

import (
	"github.com/smallbiznis/creditledger/internal/account/repository"
	"go.uber.org/fx"
)

// Module provides the balance projection store. Only the ledger engine writes it.
var Module = fx.Module("account.repository",
	fx.Provide(repository.Provide),
)
