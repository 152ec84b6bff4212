package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

// tokenDecimals is the precision of the platform mint.
const tokenDecimals = 1_000_000

func formatAmount(amount uint64) string {
	return fmt.Sprintf("%d.%02d", amount/tokenDecimals, amount%tokenDecimals/(tokenDecimals/100))
}

var templates = template.Must(template.New("mail").Funcs(template.FuncMap{
	"amount": formatAmount,
}).Parse(`
{{define "receipt"}}<p>Hello,</p>
<p>Thank you for your payment of <strong>{{amount .Amount}}</strong> (platform fee {{amount .Fee}}).</p>
<p>Wallet: <code>{{.User}}</code></p>
{{if .ExplorerURL}}<p>Recipient account: <a href="{{.ExplorerURL}}{{.Recipient}}">{{.Recipient}}</a></p>{{end}}
<p>The Team</p>{{end}}

{{define "canceled"}}<p>Hello,</p>
<p>Your subscription for wallet <code>{{.User}}</code> has been canceled.</p>
<p>Refunded from escrow: <strong>{{amount .RefundedAmount}}</strong>.</p>
<p>The Team</p>{{end}}

{{define "payment_failed"}}<p>Hello,</p>
<p>Your recent subscription payment for wallet <code>{{.User}}</code> failed: {{.Reason}}</p>
<p>The escrow holds {{amount .Available}} and the next cycle needs {{amount .Required}}.</p>
<p>Please top up your escrow and try again.</p>
<p>The Team</p>{{end}}

{{define "low_balance"}}<p>Hello,</p>
<p>Your subscription escrow balance for wallet <code>{{.Owner}}</code> is running low and may not cover your next billing cycle.</p>
<p>Balance: {{amount .Balance}}. Next cycle: {{amount .Required}}.</p>
<p>Please top up your escrow to avoid service interruption.</p>
<p>The Team</p>{{end}}
`))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
