package docai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/docsync_backend/models"
	openai "github.com/sashabaranov/go-openai"
)

const defaultModel = "gpt-4o"

const invoiceSchemaPrompt = `Extract all information from this scanned sales invoice.

Return JSON with exactly this structure (use null for fields you cannot read):
{
  "CustomerName": "billed customer or company name",
  "CustomerEmail": "customer email",
  "CustomerPhone": "customer phone",
  "CustomerAddress": "customer billing address, single line",
  "InvoiceNumber": "invoice number as printed",
  "InvoiceDate": "YYYY-MM-DD",
  "DueDate": "YYYY-MM-DD",
  "Currency": "3-letter currency code",
  "Subtotal": float,
  "DiscountTotal": float,
  "TaxTotal": float,
  "TotalAmount": float,
  "Items": [
    {"Description": "line description", "Quantity": float, "UnitPrice": float, "TotalAmount": float}
  ]
}

The "Items" array is mandatory; emit [] if no line items are readable. Do not invent values.`

const receiptSchemaPrompt = `Extract all information from this scanned purchase receipt.

Return JSON with exactly this structure (use null for fields you cannot read):
{
  "VendorName": "merchant or vendor name",
  "VendorEmail": "vendor email",
  "VendorPhone": "vendor phone",
  "VendorAddress": "vendor address, single line",
  "ReceiptNumber": "receipt or reference number as printed",
  "ReceiptDate": "YYYY-MM-DD",
  "PaymentType": "Cash or CreditCard or Check",
  "Currency": "3-letter currency code",
  "DiscountTotal": float,
  "TotalAmount": float,
  "Items": [
    {"Description": "line description", "Quantity": float, "UnitPrice": float, "TotalAmount": float}
  ]
}

The "Items" array is mandatory; emit [] if no line items are readable. Do not invent values.`

// Client wraps the document-understanding service. The service gives
// no completeness guarantee; downstream normalization owns defaulting.
type Client struct {
	api   *openai.Client
	model string
}

func NewClient() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required")
	}
	model := os.Getenv("DOCAI_MODEL")
	if model == "" {
		model = defaultModel
	}
	return &Client{api: openai.NewClient(apiKey), model: model}, nil
}

// ExtractDocument sends the page images through the vision model and
// returns the raw extraction JSON. The schema prompt is selected by
// document type; the result is only checked to be a JSON object here.
func (c *Client) ExtractDocument(ctx context.Context, documentType models.DocumentType, pages []PageImage) (json.RawMessage, error) {
	if len(pages) == 0 {
		return nil, errors.New("no page images to extract from")
	}

	prompt := invoiceSchemaPrompt
	if documentType == models.DocumentTypeReceipt {
		prompt = receiptSchemaPrompt
	}

	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: prompt},
	}
	for _, page := range pages {
		dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(page.JPEG)
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURL,
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an expert at reading scanned financial documents. Extract fields accurately and never fabricate values.",
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: parts,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("document extraction failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("document extraction returned no choices")
	}

	content := resp.Choices[0].Message.Content
	var probe map[string]interface{}
	if err := json.Unmarshal([]byte(content), &probe); err != nil {
		return nil, fmt.Errorf("document extraction returned non-object payload: %w", err)
	}
	return json.RawMessage(content), nil
}
