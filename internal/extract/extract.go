// Package extract delegates bank-statement data extraction to the Gemini
// API. The service owns no parsing logic beyond decoding the model's JSON
// reply; a malformed reply is a retryable ErrExtractionFailed and must never
// cost the caller quota.
package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Sentinel errors returned by the client.
var (
	// ErrNotConfigured indicates a missing Gemini API key.
	ErrNotConfigured = errors.New("extract: gemini api key not configured")
	// ErrExtractionFailed indicates the upstream returned malformed or no
	// data. Retryable by the user; quota is not deducted.
	ErrExtractionFailed = errors.New("extract: extraction failed")
)

// geminiEndpoint is the generateContent URL, parameterized by model.
const geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

// geminiModel is the extraction model.
const geminiModel = "gemini-2.0-flash"

// extractionPrompt is the fixed-schema system instruction. The schema below
// is the wire contract consumed by the frontend spreadsheet builder.
const extractionPrompt = `You are a specialized bank statement data extraction expert.
Your task is to extract ALL transaction data from PDF bank statements with 100% accuracy.

Extract and return data in this exact JSON structure:
{
  "accountInfo": {"accountNumber": "string", "statementDate": "string", "beginningBalance": number, "endingBalance": number},
  "deposits": [{"dateCredited": "MM-DD format", "description": "full description", "amount": number}],
  "atmWithdrawals": [{"tranDate": "MM-DD format", "datePosted": "MM-DD format", "description": "full description", "amount": negative_number}],
  "checksPaid": [{"datePaid": "MM-DD format", "checkNumber": "string", "amount": number, "referenceNumber": "string"}],
  "visaPurchases": [{"tranDate": "MM-DD format", "datePosted": "MM-DD format", "description": "full description", "amount": negative_number}]
}

CRITICAL REQUIREMENTS:
- Extract ALL transactions with exact amounts, dates, and descriptions
- Use exact date formats (MM-DD like "05-15")
- Negative amounts for withdrawals/debits
- Include complete descriptions and reference numbers
- Return ONLY valid JSON, no additional text`

// AccountInfo summarizes the statement header.
type AccountInfo struct {
	AccountNumber    string  `json:"accountNumber"`
	StatementDate    string  `json:"statementDate"`
	BeginningBalance float64 `json:"beginningBalance"`
	EndingBalance    float64 `json:"endingBalance"`
}

// Deposit is one credited transaction.
type Deposit struct {
	DateCredited string  `json:"dateCredited"`
	Description  string  `json:"description"`
	Amount       float64 `json:"amount"`
}

// ATMWithdrawal is one ATM debit.
type ATMWithdrawal struct {
	TranDate    string  `json:"tranDate"`
	DatePosted  string  `json:"datePosted"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// CheckPaid is one cleared check.
type CheckPaid struct {
	DatePaid        string  `json:"datePaid"`
	CheckNumber     string  `json:"checkNumber"`
	Amount          float64 `json:"amount"`
	ReferenceNumber string  `json:"referenceNumber"`
}

// VisaPurchase is one card purchase.
type VisaPurchase struct {
	TranDate    string  `json:"tranDate"`
	DatePosted  string  `json:"datePosted"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// BankStatementData is the named transaction schema returned to callers.
type BankStatementData struct {
	AccountInfo    AccountInfo     `json:"accountInfo"`
	Deposits       []Deposit       `json:"deposits"`
	ATMWithdrawals []ATMWithdrawal `json:"atmWithdrawals"`
	ChecksPaid     []CheckPaid     `json:"checksPaid"`
	VisaPurchases  []VisaPurchase  `json:"visaPurchases"`
}

// Client calls the Gemini API with the fixed extraction prompt.
type Client struct {
	apiKey     string
	httpClient *http.Client
	endpoint   string
}

// NewClient constructs an extraction Client.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 120 * time.Second},
		endpoint:   fmt.Sprintf(geminiEndpoint, geminiModel),
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c.apiKey != "" }

// geminiRequest is the generateContent request body.
type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

// geminiContent is one message in the generateContent schema.
type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

// geminiPart carries either text or inline file data.
type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

// geminiInlineData is a base64-encoded attachment.
type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// geminiResponse is the subset of the generateContent response we read.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Extract sends the PDF to Gemini and decodes the structured reply.
func (c *Client) Extract(ctx context.Context, pdf []byte) (*BankStatementData, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	reqBody := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: extractionPrompt}}},
		Contents: []geminiContent{
			{
				Role: "user",
				Parts: []geminiPart{
					{Text: "Extract ALL bank statement transaction data from this PDF with complete accuracy. Return only the JSON structure specified in the system message."},
					{InlineData: &geminiInlineData{
						MimeType: "application/pdf",
						Data:     base64.StdEncoding.EncodeToString(pdf),
					}},
				},
			},
		},
	}

	payload, errMarshal := json.Marshal(reqBody)
	if errMarshal != nil {
		return nil, fmt.Errorf("extract: marshal request: %w", errMarshal)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if errReq != nil {
		return nil, fmt.Errorf("extract: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return nil, fmt.Errorf("extract: gemini request: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, errRead := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if errRead != nil {
		return nil, fmt.Errorf("extract: read response: %w", errRead)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extract: gemini responded %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded geminiResponse
	if errUnmarshal := json.Unmarshal(raw, &decoded); errUnmarshal != nil {
		return nil, ErrExtractionFailed
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return nil, ErrExtractionFailed
	}

	return ParseStatementJSON(decoded.Candidates[0].Content.Parts[0].Text)
}

// ParseStatementJSON decodes a model reply into BankStatementData, stripping
// markdown code fences the model sometimes wraps around the JSON.
func ParseStatementJSON(reply string) (*BankStatementData, error) {
	text := strings.TrimSpace(reply)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var data BankStatementData
	if errUnmarshal := json.Unmarshal([]byte(text), &data); errUnmarshal != nil {
		return nil, ErrExtractionFailed
	}
	return &data, nil
}
