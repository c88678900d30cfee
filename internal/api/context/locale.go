package context

import (
	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"

	i18npkg "github.com/xzzpig/graph-gateway/internal/i18n"
)

// GinContextKeyLocalizer is the key for storing Localizer in Gin context
const GinContextKeyLocalizer = "localizer"

// LocaleMiddleware parses Accept-Language and stores the Localizer in both the
// gin context and the request's context.Context.
func LocaleMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		locale := i18npkg.ParseLocale(c.GetHeader("Accept-Language"))
		localizer := i18npkg.NewLocalizer(locale)

		// 1. 存入 Gin context，供 handler 使用
		c.Set("locale", locale)
		c.Set(GinContextKeyLocalizer, localizer)

		// 2. 存入 context.Context，通过替换 c.Request 传递到业务层
		ctx := c.Request.Context()
		ctx = i18npkg.WithLocalizer(ctx, localizer)
		ctx = i18npkg.WithLocale(ctx, locale)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetLocalizer retrieves the Localizer from Gin context
func GetLocalizer(c *gin.Context) *i18n.Localizer {
	if localizer, exists := c.Get(GinContextKeyLocalizer); exists {
		return localizer.(*i18n.Localizer)
	}
	// 回退到 request context
	return i18npkg.LocalizerFromContext(c.Request.Context())
}
