package ledger

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/phillip/event-ticketing-go/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	colPools         = "pools"
	colContributions = "contributions"
	colTickets       = "tickets"
	colTiers         = "ticket_tiers"
	colEvents        = "events"

	opTimeout = 5 * time.Second
)

var tDecimal = reflect.TypeOf(decimal.Decimal{})

// NewRegistry returns the default BSON registry extended to store
// decimal.Decimal as Decimal128.
func NewRegistry() *bsoncodec.Registry {
	reg := bson.NewRegistry()
	reg.RegisterTypeEncoder(tDecimal, bsoncodec.ValueEncoderFunc(encodeDecimal))
	reg.RegisterTypeDecoder(tDecimal, bsoncodec.ValueDecoderFunc(decodeDecimal))
	return reg
}

func encodeDecimal(_ bsoncodec.EncodeContext, vw bsonrw.ValueWriter, val reflect.Value) error {
	if !val.IsValid() || val.Type() != tDecimal {
		return bsoncodec.ValueEncoderError{Name: "DecimalEncodeValue", Types: []reflect.Type{tDecimal}, Received: val}
	}
	d := val.Interface().(decimal.Decimal)
	d128, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return fmt.Errorf("encode decimal %s: %w", d, err)
	}
	return vw.WriteDecimal128(d128)
}

func decodeDecimal(_ bsoncodec.DecodeContext, vr bsonrw.ValueReader, val reflect.Value) error {
	if !val.CanSet() || val.Type() != tDecimal {
		return bsoncodec.ValueDecoderError{Name: "DecimalDecodeValue", Types: []reflect.Type{tDecimal}, Received: val}
	}

	var (
		d   decimal.Decimal
		err error
	)
	switch vr.Type() {
	case bsontype.Decimal128:
		var d128 primitive.Decimal128
		if d128, err = vr.ReadDecimal128(); err == nil {
			d, err = decimal.NewFromString(d128.String())
		}
	case bsontype.String:
		var s string
		if s, err = vr.ReadString(); err == nil {
			d, err = decimal.NewFromString(s)
		}
	case bsontype.Double:
		var f float64
		if f, err = vr.ReadDouble(); err == nil {
			d = decimal.NewFromFloat(f)
		}
	case bsontype.Int32:
		var i int32
		if i, err = vr.ReadInt32(); err == nil {
			d = decimal.NewFromInt32(i)
		}
	case bsontype.Int64:
		var i int64
		if i, err = vr.ReadInt64(); err == nil {
			d = decimal.NewFromInt(i)
		}
	case bsontype.Null:
		err = vr.ReadNull()
	default:
		return fmt.Errorf("cannot decode %v into decimal", vr.Type())
	}
	if err != nil {
		return err
	}
	val.Set(reflect.ValueOf(d))
	return nil
}

// ConnectMongo connects a client that understands the ledger's decimal fields.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetRegistry(NewRegistry()))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// MongoStore implements Store on MongoDB. Uniqueness is enforced by partial
// unique indexes and every status change is an update filtered on the prior
// status, so the matched count tells the caller whether it won.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore wraps a connected client and ensures the ledger's indexes.
func NewMongoStore(ctx context.Context, client *mongo.Client, dbName string) (*MongoStore, error) {
	s := &MongoStore{client: client, db: client.Database(dbName)}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.db.Collection(colContributions).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "pool_id", Value: 1}, {Key: "contributor_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_pool_contributor_id").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"slot_held": true, "invited_by": ""}),
		},
		{
			Keys: bson.D{{Key: "pool_id", Value: 1}, {Key: "contributor_email", Value: 1}},
			Options: options.Index().
				SetName("uniq_pool_contributor_email").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"slot_held": true}),
		},
		{
			Keys:    bson.D{{Key: "pool_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("pool_status"),
		},
	})
	if err != nil {
		return fmt.Errorf("contribution indexes: %w", err)
	}

	_, err = s.db.Collection(colTickets).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "contribution_id", Value: 1}},
			Options: options.Index().SetName("uniq_contribution").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("owner_created"),
		},
	})
	if err != nil {
		return fmt.Errorf("ticket indexes: %w", err)
	}

	_, err = s.db.Collection(colPools).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "status", Value: 1}},
		Options: options.Index().SetName("status"),
	})
	if err != nil {
		return fmt.Errorf("pool indexes: %w", err)
	}
	return nil
}

// Close disconnects the underlying client
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) findOne(ctx context.Context, col string, filter interface{}, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := s.db.Collection(col).FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

// ---------------- POOLS ----------------
func (s *MongoStore) CreatePool(ctx context.Context, pool *models.FundingPool) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.db.Collection(colPools).InsertOne(ctx, pool)
	return err
}

func (s *MongoStore) GetPool(ctx context.Context, id string) (*models.FundingPool, error) {
	var pool models.FundingPool
	if err := s.findOne(ctx, colPools, bson.M{"_id": id}, &pool); err != nil {
		return nil, err
	}
	return &pool, nil
}

func (s *MongoStore) ListPoolsByStatus(ctx context.Context, status models.PoolStatus) ([]models.FundingPool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := s.db.Collection(colPools).Find(ctx, bson.M{"status": status})
	if err != nil {
		return nil, err
	}
	var pools []models.FundingPool
	if err := cursor.All(ctx, &pools); err != nil {
		return nil, err
	}
	return pools, nil
}

func (s *MongoStore) TransitionPool(ctx context.Context, id string, from, to models.PoolStatus, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.db.Collection(colPools).UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": at}},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		// distinguish "someone else moved it" from "no such pool"
		if _, err := s.GetPool(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return res.ModifiedCount == 1, nil
}

// ---------------- CONTRIBUTIONS ----------------
func (s *MongoStore) InsertContribution(ctx context.Context, c *models.Contribution) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	c.SlotHeld = c.Status != models.ContributionFailed
	_, err := s.db.Collection(colContributions).InsertOne(ctx, c)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateContributor
	}
	return err
}

func (s *MongoStore) GetContribution(ctx context.Context, id string) (*models.Contribution, error) {
	var c models.Contribution
	if err := s.findOne(ctx, colContributions, bson.M{"_id": id}, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *MongoStore) ListContributions(ctx context.Context, poolID string) ([]models.Contribution, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.db.Collection(colContributions).Find(ctx, bson.M{"pool_id": poolID}, opts)
	if err != nil {
		return nil, err
	}
	var out []models.Contribution
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) SetCheckoutSession(ctx context.Context, contributionID, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.db.Collection(colContributions).UpdateOne(ctx,
		bson.M{"_id": contributionID},
		bson.M{"$set": bson.M{"checkout_session_id": sessionID}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) SettleContribution(ctx context.Context, id string, to models.ContributionStatus, paymentRef string, at time.Time) (*models.Contribution, bool, error) {
	set := bson.M{"status": to, "updated_at": at}
	if paymentRef != "" {
		set["payment_reference"] = paymentRef
	}
	if to == models.ContributionFailed {
		set["slot_held"] = false
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var c models.Contribution
	err := s.db.Collection(colContributions).FindOneAndUpdate(opCtx,
		bson.M{"_id": id, "status": models.ContributionPending},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		existing, err := s.GetContribution(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &c, true, nil
}

func (s *MongoStore) SumCompleted(ctx context.Context, poolID string) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cursor, err := s.db.Collection(colContributions).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"pool_id": poolID, "status": models.ContributionCompleted}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}}},
	})
	if err != nil {
		return decimal.Zero, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total decimal.Decimal `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return decimal.Zero, err
	}
	if len(rows) == 0 {
		return decimal.Zero, nil
	}
	return rows[0].Total, nil
}

// ---------------- TICKETS ----------------
func (s *MongoStore) InsertTicket(ctx context.Context, t *models.Ticket) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.db.Collection(colTickets).InsertOne(ctx, t)
	if mongo.IsDuplicateKeyError(err) {
		return ErrTicketExists
	}
	return err
}

func (s *MongoStore) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	var t models.Ticket
	if err := s.findOne(ctx, colTickets, bson.M{"_id": id}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *MongoStore) SetTicketQRImage(ctx context.Context, ticketID, url string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.db.Collection(colTickets).UpdateOne(ctx,
		bson.M{"_id": ticketID},
		bson.M{"$set": bson.M{"qr_image_url": url}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) TicketForContribution(ctx context.Context, contributionID string) (*models.Ticket, error) {
	var t models.Ticket
	if err := s.findOne(ctx, colTickets, bson.M{"contribution_id": contributionID}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *MongoStore) ListTicketsByOwner(ctx context.Context, ownerID string) ([]models.Ticket, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.db.Collection(colTickets).Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	var out []models.Ticket
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------- CATALOG ----------------
func (s *MongoStore) GetTier(ctx context.Context, id string) (*models.TicketTier, error) {
	var tier models.TicketTier
	if err := s.findOne(ctx, colTiers, bson.M{"_id": id}, &tier); err != nil {
		return nil, err
	}
	return &tier, nil
}

func (s *MongoStore) PutTier(ctx context.Context, tier *models.TicketTier) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.db.Collection(colTiers).ReplaceOne(ctx, bson.M{"_id": tier.ID}, tier, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) IncrementTierSold(ctx context.Context, tierID string, n int) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.db.Collection(colTiers).UpdateOne(ctx,
		bson.M{"_id": tierID},
		bson.M{
			"$inc": bson.M{"sold_quantity": n},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	if err := s.findOne(ctx, colEvents, bson.M{"_id": id}, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *MongoStore) PutEvent(ctx context.Context, event *models.Event) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.db.Collection(colEvents).ReplaceOne(ctx, bson.M{"_id": event.ID}, event, options.Replace().SetUpsert(true))
	return err
}
