package extract

import (
	"strings"
)

// systemPrompt states the output contract shared by both extraction paths.
const systemPrompt = "You extract structured data from invoices and receipts. " +
	"Reply with ONLY a JSON object. No Markdown, no code fences, no commentary."

// buildInstruction returns the fixed extraction instruction. organization is the
// company processing the documents; it is the buyer, never the seller.
func buildInstruction(organization string) string {
	var b strings.Builder

	b.WriteString("Extract the following fields from this invoice:\n")
	b.WriteString("- \"invoice_date\": the invoice issue date, formatted YYYY-MM-DD\n")
	b.WriteString("- \"seller\": the name of the company or person that issued the invoice\n")
	b.WriteString("- \"total\": the total amount payable, as a number with two decimals\n")
	b.WriteString("- \"tax\": the tax amount as a number with two decimals, or the tax rate as a percentage such as \"19%\"\n")
	b.WriteString("- \"payment_method\": how the invoice was or will be paid (cash, card, bank transfer, ...)\n\n")

	b.WriteString("Rules:\n")
	if organization != "" {
		b.WriteString("- \"" + organization + "\" is the organization receiving this invoice. ")
		b.WriteString("It is NEVER the seller, even when its name or address appears prominently on the document.\n")
	} else {
		b.WriteString("- The seller is the issuer of the invoice, never the customer it is addressed to.\n")
	}
	b.WriteString("- Use an empty string \"\" for any field you cannot determine. Do not guess.\n")
	b.WriteString("- Return ONLY a JSON object with exactly these five keys: ")
	b.WriteString("\"invoice_date\", \"seller\", \"total\", \"tax\", \"payment_method\".\n")

	return b.String()
}
