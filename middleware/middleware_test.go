package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	midsec "ArgbRelay/middleware/security"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestManager_Use(t *testing.T) {
	req := require.New(t)

	var order []string
	m := NewManager(func(c *gin.Context) { order = append(order, "first") })
	m.Add(func(c *gin.Context) { order = append(order, "second") })

	r := gin.New()
	r.Use(m.Use())
	r.GET("/", func(c *gin.Context) {
		order = append(order, "handler")
		c.Status(http.StatusOK)
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	req.Equal(http.StatusOK, w.Code)
	req.Equal([]string{"first", "second", "handler"}, order)

	// an aborting middleware stops the chain
	order = nil
	m.Add(func(c *gin.Context) { c.AbortWithStatus(http.StatusTeapot) })
	w = serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	req.Equal(http.StatusTeapot, w.Code)
	req.Equal([]string{"first", "second"}, order)
}

func TestCORS(t *testing.T) {
	req := require.New(t)

	r := gin.New()
	r.Use(CORS())
	r.POST("/token", func(c *gin.Context) { c.Status(http.StatusOK) })

	pre := httptest.NewRequest(http.MethodOptions, "/token", nil)
	pre.Header.Set("Origin", "https://panel.example")
	pre.Header.Set("Access-Control-Request-Headers", "content-type")
	w := serve(r, pre)
	req.Equal(http.StatusNoContent, w.Code)
	req.Equal("https://panel.example", w.Header().Get("Access-Control-Allow-Origin"))
	req.Equal("content-type", w.Header().Get("Access-Control-Allow-Headers"))

	w = serve(r, httptest.NewRequest(http.MethodPost, "/token", nil))
	req.Equal(http.StatusOK, w.Code)
	req.Equal("*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	req := require.New(t)

	r := gin.New()
	r.Use(RequestID(), AccessLog(zap.NewNop()))
	var seen string
	r.GET("/", func(c *gin.Context) { seen = c.GetString(CtxRequestID) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(w.Header().Get(HeaderRequestID))
	req.NoError(err)
	req.Equal(seen, w.Header().Get(HeaderRequestID))

	in := uuid.NewString()
	hr := httptest.NewRequest(http.MethodGet, "/", nil)
	hr.Header.Set(HeaderRequestID, in)
	w = serve(r, hr)
	req.Equal(in, w.Header().Get(HeaderRequestID))

	hr = httptest.NewRequest(http.MethodGet, "/", nil)
	hr.Header.Set(HeaderRequestID, "<script>")
	w = serve(r, hr)
	req.NotEqual("<script>", w.Header().Get(HeaderRequestID))
}

func TestRoutes_Auth(t *testing.T) {
	req := require.New(t)

	r := gin.New()
	handler := func(c *gin.Context) { c.String(http.StatusOK, midsec.TokenFrom(c)) }
	GET(r, "/open", handler, RouteOpt{})
	POST(r, "/closed", handler, RouteOpt{IsAuth: true})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/open?access_token=abc", nil))
	req.Equal(http.StatusOK, w.Code)
	req.Equal("abc", w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodPost, "/closed", nil))
	req.Equal(http.StatusUnauthorized, w.Code)

	hr := httptest.NewRequest(http.MethodPost, "/closed", nil)
	hr.Header.Set("Authorization", "bearer xyz")
	w = serve(r, hr)
	req.Equal(http.StatusOK, w.Code)
	req.Equal("xyz", w.Body.String())
}

func TestBearerToken(t *testing.T) {
	req := require.New(t)
	req.Equal("t", midsec.BearerToken("Bearer t"))
	req.Equal("t", midsec.BearerToken("  BEARER   t "))
	req.Empty(midsec.BearerToken("Basic dXNlcg=="))
	req.Empty(midsec.BearerToken("Bearer"))
	req.Empty(midsec.BearerToken(""))
}
