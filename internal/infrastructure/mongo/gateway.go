package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-settlement/internal/domain"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	auctionsCollection    = "auctions"
	bidsCollection        = "bids"
	ordersCollection      = "orders"
	wonAuctionsCollection = "won_auctions"
	productsCollection    = "products"
	usersCollection       = "users"
	addressesCollection   = "addresses"

	maxStockRetries = 5
)

var errStockContention = errors.New("product changed concurrently, retries exhausted")

// Gateway is a domain.StorageGateway on a MongoDB database.
type Gateway struct {
	db  *mongo.Database
	now func() time.Time
}

var _ domain.StorageGateway = (*Gateway)(nil)

func NewGateway(db *mongo.Database) *Gateway {
	return &Gateway{db: db, now: time.Now}
}

func (g *Gateway) col(name string) *mongo.Collection {
	return g.db.Collection(name)
}

// EnsureIndexes creates the indexes the closing queries and the per-auction
// order uniqueness rely on.
func (g *Gateway) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		auctionsCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "end_time", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "ended_at", Value: 1}}},
		},
		bidsCollection: {
			{Keys: bson.D{{Key: "auction_id", Value: 1}, {Key: "amount", Value: -1}, {Key: "placed_at", Value: 1}, {Key: "_id", Value: 1}}},
		},
		ordersCollection: {
			{Keys: bson.D{{Key: "auction_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		wonAuctionsCollection: {
			{Keys: bson.D{{Key: "order_created", Value: 1}, {Key: "inventory_adjusted", Value: 1}}},
		},
		addressesCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_default", Value: 1}}},
		},
	}

	for name, models := range indexes {
		if _, err := g.col(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func (g *Gateway) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	var doc auctionDoc
	err := g.col(auctionsCollection).FindOne(ctx, bson.M{"_id": auctionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("get auction %s: %w", auctionID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	return doc.toDomain(), nil
}

func (g *Gateway) FindDueAuctions(ctx context.Context, now time.Time, limit int) ([]*domain.Auction, error) {
	filter := bson.M{
		"status":   string(domain.AuctionLive),
		"end_time": bson.M{"$lte": now},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "end_time", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	cur, err := g.col(auctionsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find due auctions: %w", err)
	}
	return decodeAuctions(ctx, cur)
}

func decodeAuctions(ctx context.Context, cur *mongo.Cursor) ([]*domain.Auction, error) {
	var docs []auctionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode auctions: %w", err)
	}
	auctions := make([]*domain.Auction, 0, len(docs))
	for _, d := range docs {
		auctions = append(auctions, d.toDomain())
	}
	return auctions, nil
}

func (g *Gateway) ClaimForClosing(ctx context.Context, auctionID string, endedAt time.Time) (bool, error) {
	filter := bson.M{"_id": auctionID, "status": string(domain.AuctionLive)}
	update := bson.M{"$set": bson.M{
		"status":     string(domain.AuctionEnded),
		"ended_at":   endedAt,
		"updated_at": g.now(),
	}}

	res, err := g.col(auctionsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("claim auction %s: %w", auctionID, err)
	}
	return res.ModifiedCount == 1, nil
}

func (g *Gateway) RecordWinner(ctx context.Context, auctionID, winnerID string, finalBid decimal.Decimal) error {
	filter := bson.M{
		"_id":       auctionID,
		"status":    string(domain.AuctionEnded),
		"winner_id": nil,
		"final_bid": nil,
	}
	update := bson.M{"$set": bson.M{
		"winner_id":  winnerID,
		"final_bid":  toDecimal128(finalBid),
		"updated_at": g.now(),
	}}

	res, err := g.col(auctionsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("record winner for auction %s: %w", auctionID, err)
	}
	if res.ModifiedCount == 1 {
		return nil
	}

	current, err := g.GetAuction(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("record winner: %w", err)
	}
	if current.Status != domain.AuctionEnded {
		return fmt.Errorf("record winner for auction %s: auction is %s, not ended", auctionID, current.Status)
	}
	if current.WinnerID == winnerID && current.FinalBid.Valid && current.FinalBid.Decimal.Equal(finalBid) {
		return nil
	}
	return fmt.Errorf("record winner for auction %s: %w", auctionID, domain.ErrWinnerConflict)
}

func (g *Gateway) FindEndedUnsettled(ctx context.Context, since time.Time, limit int) ([]*domain.Auction, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"status":   string(domain.AuctionEnded),
			"ended_at": bson.M{"$gte": since},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         wonAuctionsCollection,
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "won",
		}}},
		{{Key: "$match", Value: bson.M{"won": bson.M{"$size": 0}}}},
		{{Key: "$sort", Value: bson.D{{Key: "ended_at", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$project", Value: bson.M{"won": 0}}},
	}

	cur, err := g.col(auctionsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("find ended unsettled auctions: %w", err)
	}
	return decodeAuctions(ctx, cur)
}

func (g *Gateway) TopBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	opts := options.FindOne().SetSort(bson.D{
		{Key: "amount", Value: -1},
		{Key: "placed_at", Value: 1},
		{Key: "_id", Value: 1},
	})

	var doc bidDoc
	err := g.col(bidsCollection).FindOne(ctx, bson.M{"auction_id": auctionID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("top bid for auction %s: %w", auctionID, domain.ErrNoBids)
	}
	if err != nil {
		return nil, fmt.Errorf("top bid for auction %s: %w", auctionID, err)
	}
	return doc.toDomain(), nil
}

func (g *Gateway) CreateOrder(ctx context.Context, order *domain.Order) error {
	_, err := g.col(ordersCollection).InsertOne(ctx, newOrderDoc(order))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("create order for auction %s: %w", order.AuctionID, domain.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("create order for auction %s: %w", order.AuctionID, err)
	}
	return nil
}

func (g *Gateway) GetOrderByAuction(ctx context.Context, auctionID string) (*domain.Order, error) {
	var doc orderDoc
	err := g.col(ordersCollection).FindOne(ctx, bson.M{"auction_id": auctionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("order for auction %s: %w", auctionID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("order for auction %s: %w", auctionID, err)
	}
	return doc.toDomain(), nil
}

func (g *Gateway) CreateWonRecord(ctx context.Context, record *domain.WonAuctionRecord) (bool, error) {
	_, err := g.col(wonAuctionsCollection).InsertOne(ctx, newWonAuctionDoc(record))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create won record for auction %s: %w", record.AuctionID, err)
	}
	return true, nil
}

func (g *Gateway) GetWonRecord(ctx context.Context, auctionID string) (*domain.WonAuctionRecord, error) {
	var doc wonAuctionDoc
	err := g.col(wonAuctionsCollection).FindOne(ctx, bson.M{"_id": auctionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("won record for auction %s: %w", auctionID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("won record for auction %s: %w", auctionID, err)
	}
	return doc.toDomain(), nil
}

func (g *Gateway) MarkOrderCreated(ctx context.Context, auctionID, orderID string) error {
	update := bson.M{"$set": bson.M{"order_created": true, "order_id": orderID}}
	if _, err := g.col(wonAuctionsCollection).UpdateOne(ctx, bson.M{"_id": auctionID}, update); err != nil {
		return fmt.Errorf("mark order created for auction %s: %w", auctionID, err)
	}
	return nil
}

func (g *Gateway) ListIncompleteWonRecords(ctx context.Context, limit int) ([]*domain.WonAuctionRecord, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"order_created": false},
		bson.M{
			"product_id":         bson.M{"$exists": true, "$ne": ""},
			"inventory_adjusted": false,
		},
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "won_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	cur, err := g.col(wonAuctionsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list incomplete won records: %w", err)
	}

	var docs []wonAuctionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode won records: %w", err)
	}
	records := make([]*domain.WonAuctionRecord, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.toDomain())
	}
	return records, nil
}

// AdjustStock applies fn with optimistic concurrency: the write only lands if
// stock and status are still what fn saw, otherwise it reloads and retries.
func (g *Gateway) AdjustStock(ctx context.Context, productID string, fn func(p *domain.Product) error) (*domain.Product, error) {
	col := g.col(productsCollection)

	for attempt := 0; attempt < maxStockRetries; attempt++ {
		var doc productDoc
		err := col.FindOne(ctx, bson.M{"_id": productID}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("adjust stock for product %s: %w", productID, domain.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("adjust stock for product %s: %w", productID, err)
		}

		p := &domain.Product{
			ID:        doc.ID,
			Name:      doc.Name,
			Stock:     doc.Stock,
			Status:    domain.ProductStatus(doc.Status),
			UpdatedAt: doc.UpdatedAt,
		}
		if err := fn(p); err != nil {
			return nil, err
		}
		p.UpdatedAt = g.now()

		filter := bson.M{"_id": productID, "stock": doc.Stock, "status": doc.Status}
		update := bson.M{"$set": bson.M{
			"stock":      p.Stock,
			"status":     string(p.Status),
			"updated_at": p.UpdatedAt,
		}}
		res, err := col.UpdateOne(ctx, filter, update)
		if err != nil {
			return nil, fmt.Errorf("adjust stock for product %s: %w", productID, err)
		}
		if res.MatchedCount == 1 {
			return p, nil
		}
	}

	return nil, fmt.Errorf("adjust stock for product %s: %w", productID, errStockContention)
}

// AdjustInventoryOnce claims the won record's inventory flag with a
// conditional update, then adjusts stock. Without a multi-document
// transaction the flag is cleared again if the stock update fails.
func (g *Gateway) AdjustInventoryOnce(ctx context.Context, auctionID, productID string,
	fn func(p *domain.Product) error) (*domain.Product, bool, error) {
	col := g.col(wonAuctionsCollection)

	res, err := col.UpdateOne(ctx,
		bson.M{"_id": auctionID, "inventory_adjusted": false},
		bson.M{"$set": bson.M{"inventory_adjusted": true}})
	if err != nil {
		return nil, false, fmt.Errorf("adjust inventory for auction %s: %w", auctionID, err)
	}
	if res.ModifiedCount == 0 {
		return nil, false, nil
	}

	p, err := g.AdjustStock(ctx, productID, fn)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, true, err
	}
	if err != nil {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_, rerr := col.UpdateOne(releaseCtx,
			bson.M{"_id": auctionID},
			bson.M{"$set": bson.M{"inventory_adjusted": false}})
		if rerr != nil {
			return nil, false, errors.Join(err, fmt.Errorf("release inventory flag for auction %s: %w", auctionID, rerr))
		}
		return nil, false, err
	}
	return p, true, nil
}

func (g *Gateway) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var doc userDoc
	err := g.col(usersCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("get user %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return &domain.User{ID: doc.ID, Name: doc.Name, Email: doc.Email, Phone: doc.Phone}, nil
}

func (g *Gateway) GetDefaultAddress(ctx context.Context, userID string) (*domain.Address, error) {
	var doc addressDoc
	err := g.col(addressesCollection).FindOne(ctx, bson.M{"user_id": userID, "is_default": true}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("default address for user %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("default address for user %s: %w", userID, err)
	}
	return doc.toDomain(), nil
}
