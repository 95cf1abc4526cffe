package relay

import (
	"context"
	"net/http"

	mid "ArgbRelay/middleware"
	midsec "ArgbRelay/middleware/security"
	"ArgbRelay/module/relay/model"
	"ArgbRelay/service/chat"
	"ArgbRelay/tools/errs"
	"ArgbRelay/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	HeaderClientID     = "X-Client-Id"
	HeaderClientSecret = "X-Client-Secret"
)

// Authenticator is the slice of service.Authenticator the HTTP layer uses.
type Authenticator interface {
	Authenticate(ctx context.Context, id, secret string) (model.AuthContext, error)
	TryGetCached(ctx context.Context, id string) (model.AuthContext, bool)
}

// TokenParser validates bearer tokens presented at admission.
type TokenParser interface {
	Parse(token string) (*security.Claims, error)
}

type TokenRequest struct {
	ID     string `json:"id" validate:"required,max=128"`
	Secret string `json:"secret" validate:"required,max=1024"`
}

type ErrorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// API serves token issuance and websocket admission.
type API struct {
	auth     Authenticator
	tokens   TokenParser
	relay    *chat.Server
	connOpts chat.ConnOptions
	validate *validator.Validate
	log      *zap.Logger
}

func NewAPI(auth Authenticator, tokens TokenParser, relay *chat.Server, connOpts chat.ConnOptions, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{
		auth:     auth,
		tokens:   tokens,
		relay:    relay,
		connOpts: connOpts,
		validate: validator.New(),
		log:      log,
	}
}

// NewRouter wires the middleware chain and every route.
func NewRouter(api *API, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	mids := mid.NewManager(mid.RequestID(), mid.CORS())
	if log != nil {
		mids.Add(mid.AccessLog(log))
	}
	r.Use(mids.Use())

	mid.POST(r, "/token", api.PostToken, mid.RouteOpt{})
	mid.GET(r, "/api/token", api.GetToken, mid.RouteOpt{})
	mid.GET(r, "/", api.Admit, mid.RouteOpt{})
	mid.GET(r, "/ws", api.Admit, mid.RouteOpt{})
	r.GET("/healthz", api.Health)
	mid.GET(r, "/stats", api.Stats, mid.RouteOpt{IsAuth: true})
	return r
}

// PostToken: POST /token {"id","secret"}.
func (a *API) PostToken(c *gin.Context) {
	var in TokenRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		a.fail(c, http.StatusBadRequest, errs.ErrInvalidCredentials.Code, "invalid request body")
		return
	}
	a.issue(c, in)
}

// GetToken: GET /api/token with X-Client-Id and X-Client-Secret headers.
func (a *API) GetToken(c *gin.Context) {
	a.issue(c, TokenRequest{
		ID:     c.GetHeader(HeaderClientID),
		Secret: c.GetHeader(HeaderClientSecret),
	})
}

func (a *API) issue(c *gin.Context, in TokenRequest) {
	if err := a.validate.Struct(in); err != nil {
		a.fail(c, http.StatusBadRequest, errs.ErrInvalidCredentials.Code, "id and secret are required")
		return
	}
	ac, err := a.auth.Authenticate(c.Request.Context(), in.ID, in.Secret)
	if err != nil {
		a.fail(c, http.StatusUnauthorized, errs.CodeOf(err), errs.ErrInvalidCredentials.Msg)
		return
	}
	c.JSON(http.StatusOK, ac.Token)
}

// Admit upgrades an authenticated client and hands it to the relay. Nothing is
// upgraded unless the client has a cached auth context.
func (a *API) Admit(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		a.fail(c, http.StatusUpgradeRequired, errs.Unauthenticated, "websocket upgrade required")
		return
	}

	id, status, err := a.identity(c)
	if err != nil {
		a.log.Info("[HTTP] admission refused", zap.Int("status", status), zap.Error(err))
		a.fail(c, status, errs.CodeOf(err), "admission refused")
		return
	}

	ac, ok := a.auth.TryGetCached(c.Request.Context(), id)
	if !ok {
		a.log.Info("[HTTP] admission refused: no auth context", zap.String("client", id))
		a.fail(c, http.StatusUnauthorized, errs.ExpiredAuth, "authentication required")
		return
	}

	conn, err := chat.Upgrade(c.Writer, c.Request, a.connOpts)
	if err != nil {
		// the upgrader has already answered the request
		a.log.Info("[HTTP] upgrade failed", zap.String("client", id), zap.Error(err))
		return
	}
	if err := a.relay.Serve(c.Request.Context(), conn, ac.Client, ac.Channel); err != nil {
		a.log.Warn("[HTTP] relay refused connection", zap.String("client", id), zap.Error(err))
	}
}

// identity resolves the client from a bearer token, falling back to the client_id query.
func (a *API) identity(c *gin.Context) (string, int, error) {
	clientID := c.Query("client_id")
	token := midsec.TokenFrom(c)
	if token == "" {
		if clientID == "" {
			return "", http.StatusUnauthorized, errs.ErrUnauthenticated.WrapMsg("no identity")
		}
		return clientID, 0, nil
	}

	claims, err := a.tokens.Parse(token)
	if err != nil {
		return "", http.StatusUnauthorized, err
	}
	roles := claims.RoleSet()
	if !roles.Has(model.RoleSender) && !roles.Has(model.RoleReceiver) {
		return "", http.StatusForbidden, errs.ErrForbidden.WrapMsg("token has no relay role", "sub", claims.Subject)
	}
	if clientID != "" && clientID != claims.Subject {
		return "", http.StatusForbidden, errs.ErrForbidden.WrapMsg("client_id does not match token", "sub", claims.Subject, "client_id", clientID)
	}
	return claims.Subject, 0, nil
}

func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stats reports live connections per channel to any holder of a valid token.
func (a *API) Stats(c *gin.Context) {
	if _, err := a.tokens.Parse(midsec.TokenFrom(c)); err != nil {
		a.fail(c, http.StatusUnauthorized, errs.CodeOf(err), "invalid token")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"connections": a.relay.Live(),
		"channels":    a.relay.Stats(),
	})
}

func (a *API) fail(c *gin.Context, status, code int, msg string) {
	if code == 0 {
		code = errs.ServerInternalError
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Msg: msg})
}
