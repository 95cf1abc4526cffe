package service

import (
	"context"
	"time"

	"ArgbRelay/module/relay/model"
	"ArgbRelay/module/relay/store"
	"ArgbRelay/service/storage"
	"ArgbRelay/tools/errs"
	"ArgbRelay/tools/security"

	"go.uber.org/zap"
)

// TokenIssuer signs tokens for authenticated clients.
type TokenIssuer interface {
	Issue(identity string, roles model.RoleSet) (model.TokenInfo, error)
}

// Authenticator turns client credentials into a cached AuthContext.
type Authenticator struct {
	clients  store.ClientRepository
	channels store.ChannelRepository
	issuer   TokenIssuer
	cache    storage.AuthCache
	log      *zap.Logger
}

func NewAuthenticator(clients store.ClientRepository, channels store.ChannelRepository,
	issuer TokenIssuer, cache storage.AuthCache, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{
		clients:  clients,
		channels: channels,
		issuer:   issuer,
		cache:    cache,
		log:      log,
	}
}

// Authenticate verifies id and secret, resolves the client's channel, issues a
// token and caches the result for the token lifetime. Every failure is
// reported as errs.ErrInvalidCredentials.
func (a *Authenticator) Authenticate(ctx context.Context, id, secret string) (model.AuthContext, error) {
	if id == "" || secret == "" {
		return model.AuthContext{}, errs.ErrInvalidCredentials.Wrap()
	}

	// 1. client lookup
	client, err := a.clients.GetClient(ctx, id)
	if err != nil {
		a.deny(id, "client lookup", err)
		return model.AuthContext{}, errs.ErrInvalidCredentials.Wrap()
	}

	// 2. secret check
	if !security.VerifySecret(secret, client.SecretHash) {
		a.deny(id, "secret mismatch", nil)
		return model.AuthContext{}, errs.ErrInvalidCredentials.Wrap()
	}

	// 3. channel membership
	channel, err := a.channels.GetChannelByMemberID(ctx, id)
	if err != nil {
		a.deny(id, "channel lookup", err)
		return model.AuthContext{}, errs.ErrInvalidCredentials.Wrap()
	}

	// 4. token
	token, err := a.issuer.Issue(client.ID, client.Roles)
	if err != nil {
		a.deny(id, "issue token", err)
		return model.AuthContext{}, errs.ErrInvalidCredentials.Wrap()
	}

	ac := model.AuthContext{
		Channel: *channel,
		Client: model.Client{
			ID:    client.ID,
			Name:  client.Name,
			Roles: client.Roles,
		},
		Token: token,
	}

	// 5. cache, replacing any earlier context
	ttl := time.Duration(token.ExpiresIn) * time.Second
	if err := a.cache.Set(ctx, id, ac, ttl); err != nil {
		a.deny(id, "cache store", err)
		return model.AuthContext{}, errs.ErrInvalidCredentials.Wrap()
	}

	a.log.Info("[Auth] authenticated",
		zap.String("client", id),
		zap.String("channel", ac.Channel.ID),
		zap.Strings("roles", ac.Client.Roles.Strings()))
	return ac, nil
}

// TryGetCached returns the cached context of id. Backend errors count as a miss.
func (a *Authenticator) TryGetCached(ctx context.Context, id string) (model.AuthContext, bool) {
	if id == "" {
		return model.AuthContext{}, false
	}
	ac, ok, err := a.cache.Get(ctx, id)
	if err != nil {
		a.log.Warn("[Auth] cache lookup failed", zap.String("client", id), zap.Error(err))
		return model.AuthContext{}, false
	}
	return ac, ok
}

func (a *Authenticator) deny(id, reason string, err error) {
	fields := []zap.Field{zap.String("client", id), zap.String("reason", reason)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	a.log.Info("[Auth] denied", fields...)
}
