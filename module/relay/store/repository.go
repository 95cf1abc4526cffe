//go:generate go run go.uber.org/mock/mockgen -source=repository.go -destination=mocks/mock_repository.go -package=mocks
package store

import (
	"context"

	"ArgbRelay/module/relay/model"
)

// ClientRepository loads credentialed clients. A missing client yields errs.ErrRecordNotFound.
type ClientRepository interface {
	GetClient(ctx context.Context, id string) (*model.Client, error)
}

// ChannelRepository resolves the channel a client belongs to. No membership yields errs.ErrRecordNotFound.
type ChannelRepository interface {
	GetChannelByMemberID(ctx context.Context, clientID string) (*model.Channel, error)
}

// Store is a backend serving both repositories.
type Store interface {
	ClientRepository
	ChannelRepository
	Close(ctx context.Context) error
}
