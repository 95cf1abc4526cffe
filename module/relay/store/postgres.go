package store

import (
	"context"
	"errors"

	"ArgbRelay/module/relay/model"
	"ArgbRelay/tools/errs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Schema creates the tables read by PostgresStore.
const Schema = `
CREATE TABLE IF NOT EXISTS clients (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL DEFAULT '',
    roles       TEXT[] NOT NULL DEFAULT '{}',
    secret_hash TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS channels (
    id       TEXT PRIMARY KEY,
    name     TEXT NOT NULL DEFAULT '',
    owner_id TEXT NOT NULL DEFAULT '',
    members  TEXT[] NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS channels_members_idx ON channels USING GIN (members);
`

const (
	sqlGetClient = `SELECT id, name, roles, secret_hash FROM clients WHERE id = $1`

	sqlGetChannelByMember = `SELECT id, name, owner_id, members FROM channels WHERE $1 = ANY(members) ORDER BY id LIMIT 1`
)

type PostgresStore struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewPostgresPool connects and pings.
func NewPostgresPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errs.WrapMsg(err, "parse postgres dsn")
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errs.WrapMsg(err, "open postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.WrapMsg(err, "postgres ping failed")
	}
	return pool, nil
}

func NewPostgresStore(pool *pgxpool.Pool, log *zap.Logger) *PostgresStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostgresStore{pool: pool, log: log}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return errs.WrapMsg(err, "apply schema")
	}
	return nil
}

func (s *PostgresStore) GetClient(ctx context.Context, id string) (*model.Client, error) {
	var (
		c     model.Client
		roles []string
	)
	err := s.pool.QueryRow(ctx, sqlGetClient, id).Scan(&c.ID, &c.Name, &roles, &c.SecretHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrRecordNotFound.WrapMsg("client", "id", id)
		}
		return nil, errs.WrapMsg(err, "query client", "id", id)
	}
	c.Roles = toRoleSet(s.log, c.ID, roles)
	return &c, nil
}

func (s *PostgresStore) GetChannelByMemberID(ctx context.Context, clientID string) (*model.Channel, error) {
	var ch model.Channel
	err := s.pool.QueryRow(ctx, sqlGetChannelByMember, clientID).Scan(&ch.ID, &ch.Name, &ch.OwnerID, &ch.Members)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrRecordNotFound.WrapMsg("channel", "member", clientID)
		}
		return nil, errs.WrapMsg(err, "query channel", "member", clientID)
	}
	return &ch, nil
}

func (s *PostgresStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}
