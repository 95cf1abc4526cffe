package middleware

import (
	midsec "ArgbRelay/middleware/security"

	"github.com/gin-gonic/gin"
)

// 配置选项
type RouteOpt struct {
	IsAuth bool // bearer token required
}

func guard(opt RouteOpt, handler gin.HandlerFunc) []gin.HandlerFunc {
	if !opt.IsAuth {
		return []gin.HandlerFunc{midsec.Middleware(nil), handler}
	}
	opts := midsec.DefaultOptions()
	opts.Required = true
	return []gin.HandlerFunc{midsec.Middleware(opts), handler}
}

// 封装 POST
func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.POST(path, guard(opt, handler)...)
}

// 封装 GET
func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.GET(path, guard(opt, handler)...)
}
