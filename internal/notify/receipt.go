package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/punchamoorthee/creditledger/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	dateLayout = "02/01/2006"
	timeLayout = "15:04:05"
)

// Receipt renders the sale receipt sent to the client, with dates and times
// shown in loc.
func Receipt(p domain.Purchase, clientName string, loc *time.Location) string {
	sold := p.DateSell.In(loc)
	var b strings.Builder
	b.WriteString("*COMPROVANTE DE VENDA*\n\n")
	fmt.Fprintf(&b, "Data: %s\n", sold.Format(dateLayout))
	fmt.Fprintf(&b, "Hora: %s\n", sold.Format(timeLayout))
	fmt.Fprintf(&b, "Cliente: %s\n\n", clientName)

	b.WriteString("*PRODUTOS*\n")
	for _, it := range p.Items {
		name := it.ProductName
		if name == "" {
			name = fmt.Sprintf("Produto #%d", it.ProductID)
		}
		fmt.Fprintf(&b, "- %s\n", name)
		fmt.Fprintf(&b, "  %dx %s = %s\n", it.Quantity, FormatBRL(it.Price), FormatBRL(it.Total()))
	}

	fmt.Fprintf(&b, "\n*TOTAL:* %s\n", FormatBRL(p.Value))
	fmt.Fprintf(&b, "Data de Pagamento: %s\n", p.DatePay.In(loc).Format(dateLayout))
	fmt.Fprintf(&b, "Código da venda: #%d", p.ID)
	return b.String()
}

// DebtReminder renders the reminder for a client's outstanding total.
func DebtReminder(clientName string, total decimal.Decimal) string {
	return fmt.Sprintf("Olá %s, consta em aberto o valor de %s referente às suas compras. "+
		"Por favor, regularize até o início do próximo mês.", clientName, FormatBRL(total))
}

// FormatBRL formats d as Brazilian reais, e.g. "R$ 1.234,56".
func FormatBRL(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	return fmt.Sprintf("%sR$ %s,%s", sign, grouped.String(), frac)
}
