// Package i18n localizes the user-facing error messages of the gateway.
package i18n

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

//go:embed locales/*.toml
var localeFS embed.FS

var (
	bundle     *i18n.Bundle
	bundleOnce sync.Once
	bundleErr  error
)

// Init loads the embedded message files. It is safe to call more than once.
func Init() error {
	bundleOnce.Do(func() {
		bundle, bundleErr = loadBundle()
	})
	return bundleErr
}

func loadBundle() (*i18n.Bundle, error) {
	b := i18n.NewBundle(language.English)
	b.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, name := range []string{"locales/en.toml", "locales/zh-CN.toml"} {
		if _, err := b.LoadMessageFileFS(localeFS, name); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", name, err)
		}
	}
	return b, nil
}

// NewLocalizer returns a localizer for lang, falling back to English.
func NewLocalizer(lang string) *i18n.Localizer {
	_ = Init()
	return i18n.NewLocalizer(bundle, lang)
}

// ParseLocale picks the supported locale for an Accept-Language value.
// Any Chinese variant maps to zh-CN, everything else to en.
func ParseLocale(s string) string {
	tags, _, err := language.ParseAcceptLanguage(s)
	if err != nil || len(tags) == 0 {
		return "en"
	}
	if base, _ := tags[0].Base(); base.String() == "zh" {
		return "zh-CN"
	}
	return "en"
}

// T translates msgID. Unknown IDs are returned unchanged.
func T(localizer *i18n.Localizer, msgID string) string {
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID: msgID,
	})
	if err != nil {
		return msgID // fallback to key
	}
	return msg
}

// TWithData translates msgID with template data.
func TWithData(localizer *i18n.Localizer, msgID string, data map[string]interface{}) string {
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
	})
	if err != nil {
		return msgID
	}
	return msg
}

type contextKey string

const (
	ContextKeyLocalizer contextKey = "i18n.localizer"
	ContextKeyLocale    contextKey = "i18n.locale"
)

// WithLocalizer returns ctx carrying localizer.
func WithLocalizer(ctx context.Context, localizer *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ContextKeyLocalizer, localizer)
}

// WithLocale returns ctx carrying the locale name.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, ContextKeyLocale, locale)
}

// LocalizerFromContext returns the localizer stored in ctx, or an English one.
func LocalizerFromContext(ctx context.Context) *i18n.Localizer {
	if localizer, ok := ctx.Value(ContextKeyLocalizer).(*i18n.Localizer); ok {
		return localizer
	}
	return NewLocalizer("en")
}

// LocaleFromContext returns the locale stored in ctx, or "en".
func LocaleFromContext(ctx context.Context) string {
	if locale, ok := ctx.Value(ContextKeyLocale).(string); ok {
		return locale
	}
	return "en"
}

// Ctx translates msgID in the language of ctx.
func Ctx(ctx context.Context, msgID string) string {
	return T(LocalizerFromContext(ctx), msgID)
}

// CtxWithData is Ctx with template data.
func CtxWithData(ctx context.Context, msgID string, data map[string]interface{}) string {
	return TWithData(LocalizerFromContext(ctx), msgID, data)
}

// Error is an error whose user-facing message is looked up by MsgID in the
// requester's language. The API layer translates it; logs see MsgID.
type Error struct {
	MsgID string
	// Data fills the message template.
	Data map[string]interface{}
	// StatusCode defaults to 400.
	StatusCode int
	Cause      error
}

// Error returns the message ID, followed by the cause when there is one.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.MsgID, e.Cause)
	}
	return e.MsgID
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Translate renders the message with localizer.
func (e *Error) Translate(localizer *i18n.Localizer) string {
	if e.Data != nil {
		return TWithData(localizer, e.MsgID, e.Data)
	}
	return T(localizer, e.MsgID)
}

// TranslateCtx renders the message in the language stored in ctx.
func (e *Error) TranslateCtx(ctx context.Context) string {
	return e.Translate(LocalizerFromContext(ctx))
}

// NewI18nError creates a 400 error for msgID.
func NewI18nError(msgID string) *Error {
	return &Error{
		MsgID:      msgID,
		StatusCode: 400,
	}
}

// NewI18nErrorWithData creates a 400 error for msgID with template data.
func NewI18nErrorWithData(msgID string, data map[string]interface{}) *Error {
	return &Error{
		MsgID:      msgID,
		Data:       data,
		StatusCode: 400,
	}
}

// WithStatus sets the HTTP status.
func (e *Error) WithStatus(code int) *Error {
	e.StatusCode = code
	return e
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithData replaces the template data.
func (e *Error) WithData(data map[string]interface{}) *Error {
	e.Data = data
	return e
}

// ErrBadRequestI18n is NewI18nError with an explicit 400.
func ErrBadRequestI18n(msgID string) *Error {
	return NewI18nError(msgID).WithStatus(400)
}

// IsI18nError finds an *Error in err's chain.
func IsI18nError(err error) (*Error, bool) {
	var i18nErr *Error
	if errors.As(err, &i18nErr) {
		return i18nErr, true
	}
	return nil, false
}
