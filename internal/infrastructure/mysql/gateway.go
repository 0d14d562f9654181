package mysql

import (
	"database/sql"

	"auction-settlement/internal/domain"
)

// Gateway bundles the MySQL repositories into a domain.StorageGateway.
type Gateway struct {
	*MySQLAuctionRepository
	*MySQLBidRepository
	*MySQLOrderRepository
	*MySQLWonAuctionRepository
	*MySQLProductRepository
	*MySQLUserRepository
}

var _ domain.StorageGateway = (*Gateway)(nil)

func NewGateway(db *sql.DB) *Gateway {
	return &Gateway{
		MySQLAuctionRepository:    NewMySQLAuctionRepository(db),
		MySQLBidRepository:        NewMySQLBidRepository(db),
		MySQLOrderRepository:      NewMySQLOrderRepository(db),
		MySQLWonAuctionRepository: NewMySQLWonAuctionRepository(db),
		MySQLProductRepository:    NewMySQLProductRepository(db),
		MySQLUserRepository:       NewMySQLUserRepository(db),
	}
}
