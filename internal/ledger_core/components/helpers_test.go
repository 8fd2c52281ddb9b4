package components

import (
	"github.com/google/uuid"
	"github.com/stl-ledger/internal/domain/shared"
	"github.com/stl-ledger/internal/domain/transaction"
)

var transactionFilterAll = transaction.Filter{}

func userActor() shared.Actor {
	id := uuid.New()
	return shared.Actor{Type: shared.ActorTypeUser, ID: &id}
}
