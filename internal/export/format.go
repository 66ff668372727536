package export

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"mkoba/internal/core"
)

// FormatMoney renders an amount in major units with thousands grouping and
// two decimals, e.g. 1,234,567.50.
func FormatMoney(m core.Money) string {
	p := message.NewPrinter(language.English)
	return p.Sprint(number.Decimal(m.Major(), number.Scale(2)))
}
