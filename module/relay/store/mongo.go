package store

import (
	"context"
	"errors"

	"ArgbRelay/data/database/mgo/mongoutil"
	"ArgbRelay/module/relay/model"
	"ArgbRelay/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// clientDoc 与 Clients 集合的字段一一对应
type clientDoc struct {
	ObjectID   primitive.ObjectID `bson:"_id,omitempty"`
	Id         string             `bson:"Id"`
	Name       string             `bson:"Name"`
	Roles      []string           `bson:"Roles"`
	SecretHash string             `bson:"SecretHash"`
}

// socketDoc 与 Sockets 集合的字段一一对应
type socketDoc struct {
	ObjectID primitive.ObjectID `bson:"_id,omitempty"`
	Id       string             `bson:"Id"`
	Name     string             `bson:"Name"`
	OwnerId  string             `bson:"OwnerId"`
	Clients  []string           `bson:"Clients"`
}

// DBProvider hands out the current database, false while disconnected.
type DBProvider interface {
	TryGetDB() (*mongo.Database, bool)
}

type MongoStore struct {
	db      DBProvider
	clients string
	sockets string
	log     *zap.Logger
}

func NewMongoStore(db DBProvider, cfg *mongoutil.Config, log *zap.Logger) *MongoStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &MongoStore{
		db:      db,
		clients: cfg.ClientsCollection,
		sockets: cfg.SocketsCollection,
		log:     log,
	}
}

func (s *MongoStore) collection(name string) (*mongo.Collection, error) {
	db, ok := s.db.TryGetDB()
	if !ok {
		return nil, errs.ErrServerInternal.WrapMsg("mongo not ready")
	}
	return db.Collection(name), nil
}

func (s *MongoStore) GetClient(ctx context.Context, id string) (*model.Client, error) {
	coll, err := s.collection(s.clients)
	if err != nil {
		return nil, err
	}
	var doc clientDoc
	if err := coll.FindOne(ctx, bson.M{"Id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrRecordNotFound.WrapMsg("client", "id", id)
		}
		return nil, errs.WrapMsg(err, "find client", "id", id)
	}
	return &model.Client{
		ID:         doc.Id,
		Name:       doc.Name,
		Roles:      toRoleSet(s.log, doc.Id, doc.Roles),
		SecretHash: doc.SecretHash,
	}, nil
}

func (s *MongoStore) GetChannelByMemberID(ctx context.Context, clientID string) (*model.Channel, error) {
	coll, err := s.collection(s.sockets)
	if err != nil {
		return nil, err
	}
	var doc socketDoc
	// Clients 是数组字段，等值查询即匹配任一元素
	if err := coll.FindOne(ctx, bson.M{"Clients": clientID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrRecordNotFound.WrapMsg("channel", "member", clientID)
		}
		return nil, errs.WrapMsg(err, "find channel", "member", clientID)
	}
	return &model.Channel{
		ID:      doc.Id,
		Name:    doc.Name,
		OwnerID: doc.OwnerId,
		Members: doc.Clients,
	}, nil
}

// Close is a no-op; the connection belongs to the mongo manager.
func (s *MongoStore) Close(context.Context) error { return nil }
