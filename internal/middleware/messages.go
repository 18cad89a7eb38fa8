package middleware

import (
	"context"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// User-facing message keys. The English text is the key itself.
const (
	MsgInvalidPayload     = "invalid payload"
	MsgPromptRequired     = "prompt is required"
	MsgNoModels           = "select at least one model"
	MsgUnknownStyle       = "unknown style %q"
	MsgUnknownModels      = "unknown models: %s"
	MsgIncompatibleStyle  = "style %q is not available for: %s"
	MsgComparisonFailed   = "comparison failed"
	MsgRenderFailed       = "failed to render results"
	MsgRecordVisitFailed  = "failed to record visit"
	MsgTooManyComparisons = "too many comparisons, try again later"
)

var hebrewMessages = map[string]string{
	MsgInvalidPayload:     "הבקשה אינה תקינה",
	MsgPromptRequired:     "יש לכתוב פרומפט",
	MsgNoModels:           "יש לבחור לפחות מודל אחד",
	MsgUnknownStyle:       "סגנון לא מוכר %q",
	MsgUnknownModels:      "מודלים לא מוכרים: %s",
	MsgIncompatibleStyle:  "הסגנון %q אינו זמין עבור: %s",
	MsgComparisonFailed:   "ההשוואה נכשלה",
	MsgRenderFailed:       "הצגת התוצאות נכשלה",
	MsgRecordVisitFailed:  "רישום הביקור נכשל",
	MsgTooManyComparisons: "יותר מדי השוואות, נסו שוב מאוחר יותר",
}

func init() {
	for key, text := range hebrewMessages {
		if err := message.SetString(language.Hebrew, key, text); err != nil {
			panic(err)
		}
		if err := message.SetString(language.English, key, key); err != nil {
			panic(err)
		}
	}
}

// Localize formats key with args in the locale negotiated by Locale.
func Localize(ctx context.Context, key string, args ...any) string {
	return message.NewPrinter(language.Make(LocaleFromContext(ctx))).Sprintf(key, args...)
}
