package receipts

const documentStyle = `
  body { font-family: Helvetica, Arial, sans-serif; color: #1a1a2e; margin: 40px; }
  h1 { font-size: 22px; margin-bottom: 4px; }
  .meta { color: #5c5c70; font-size: 13px; margin-bottom: 24px; }
  table { width: 100%; border-collapse: collapse; font-size: 14px; }
  th { text-align: left; border-bottom: 2px solid #1a1a2e; padding: 6px 4px; }
  td { border-bottom: 1px solid #d8d8e0; padding: 6px 4px; }
  .amount { text-align: right; }
  .total { font-weight: bold; font-size: 16px; margin-top: 16px; text-align: right; }
  .footer { margin-top: 40px; font-size: 12px; color: #8a8a9a; }
`

const orderReceiptTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><style>` + documentStyle + `</style></head>
<body>
  <h1>GatherGrid &mdash; Order Receipt</h1>
  <div class="meta">Order {{.OrderRef}} &middot; {{.BuyerName}}</div>
  <table>
    <tr><th>Item</th><th class="amount">Qty</th><th class="amount">Unit</th><th class="amount">Net</th><th class="amount">Total</th></tr>
    {{range .Lines}}
    <tr>
      <td>{{.Name}}</td>
      <td class="amount">{{.Qty}}</td>
      <td class="amount">{{.UnitPrice}}</td>
      <td class="amount">{{.NetPrice}}</td>
      <td class="amount">{{.LineTotal}}</td>
    </tr>
    {{end}}
  </table>
  <div class="total">Total: {{.Total}} {{.Currency}}</div>
  <div class="footer">Thank you for shopping on GatherGrid.</div>
</body>
</html>`

const vendorInvoiceTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><style>` + documentStyle + `</style></head>
<body>
  <h1>GatherGrid &mdash; Vendor Invoice</h1>
  <div class="meta">Order {{.OrderRef}} &middot; Vendor {{.VendorName}} &middot; Buyer {{.BuyerName}}</div>
  <table>
    <tr><th>Item</th><th class="amount">Qty</th><th class="amount">Unit</th><th class="amount">Net</th><th class="amount">Total</th></tr>
    {{range .Lines}}
    <tr>
      <td>{{.Name}}</td>
      <td class="amount">{{.Qty}}</td>
      <td class="amount">{{.UnitPrice}}</td>
      <td class="amount">{{.NetPrice}}</td>
      <td class="amount">{{.LineTotal}}</td>
    </tr>
    {{end}}
  </table>
  <div class="total">Payable: {{.Total}} {{.Currency}}</div>
  <div class="footer">Settlement is issued under your connected payout account.</div>
</body>
</html>`

const eventTicketTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><style>` + documentStyle + `
  .ticket { border: 2px dashed #1a1a2e; padding: 24px; margin-top: 16px; }
  .qr { margin-top: 16px; }
</style></head>
<body>
  <h1>GatherGrid &mdash; Event Ticket</h1>
  <div class="meta">{{.EventName}}</div>
  <div class="ticket">
    <p>Attendee: {{.BuyerName}}</p>
    <p>Ticket: {{.TicketID}} ({{.TicketCount}} admission{{if gt .TicketCount 1}}s{{end}})</p>
    <p>Starts: {{.StartAt.Format "Jan 2, 2006 15:04 MST"}}</p>
    <p>Ends: {{.EndAt.Format "Jan 2, 2006 15:04 MST"}}</p>
    <p>Paid: {{.Total}} {{.Currency}}</p>
    <div class="qr"><img src="data:image/png;base64,{{.QRImage}}" width="200" height="200" alt="ticket qr"></div>
  </div>
  <div class="footer">Present this QR at the event check-in.</div>
</body>
</html>`
