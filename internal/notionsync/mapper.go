package notionsync

import (
	"time"

	"github.com/dvloznov/smart-ledger/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the Notion ledger database.
const (
	propDescription   = "Description"
	propDate          = "Date"
	propAmount        = "Amount"
	propCurrency      = "Currency"
	propCategory      = "Category"
	propMerchant      = "Merchant"
	propTransactionID = "Transaction ID"
	propImportJob     = "Import Job"
	propImportedAt    = "Imported At"
)

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: content},
	}}
}

func dateProperty(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t)
	return notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
}

// TransactionToNotionProperties maps a confirmed transaction onto the
// ledger database schema.
func TransactionToNotionProperties(tx domain.Transaction) notionapi.Properties {
	props := notionapi.Properties{
		propDescription:   notionapi.TitleProperty{Title: richText(tx.Description)},
		propDate:          dateProperty(tx.OccurredAt),
		propAmount:        notionapi.NumberProperty{Number: tx.Amount.InexactFloat64()},
		propCurrency:      notionapi.SelectProperty{Select: notionapi.Option{Name: tx.Currency}},
		propTransactionID: notionapi.RichTextProperty{RichText: richText(tx.ID)},
		propImportedAt:    dateProperty(tx.CreatedAt),
	}

	if tx.Category != nil && *tx.Category != "" {
		props[propCategory] = notionapi.SelectProperty{Select: notionapi.Option{Name: *tx.Category}}
	}
	if tx.Merchant != nil && *tx.Merchant != "" {
		props[propMerchant] = notionapi.RichTextProperty{RichText: richText(*tx.Merchant)}
	}
	if tx.JobID != "" {
		props[propImportJob] = notionapi.RichTextProperty{RichText: richText(tx.JobID)}
	}
	return props
}

// extractTransactionID returns the ledger id stored on a page, or "".
func extractTransactionID(page notionapi.Page) string {
	if prop, ok := page.Properties[propTransactionID]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok && len(rt.RichText) > 0 {
			return rt.RichText[0].PlainText
		}
	}
	return ""
}

// extractDate returns the page's transaction date.
func extractDate(page notionapi.Page) (time.Time, bool) {
	if prop, ok := page.Properties[propDate]; ok {
		if dp, ok := prop.(*notionapi.DateProperty); ok && dp.Date != nil && dp.Date.Start != nil {
			return time.Time(*dp.Date.Start), true
		}
	}
	return time.Time{}, false
}
