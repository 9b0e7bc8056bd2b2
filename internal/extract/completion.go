package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"finledger/internal/logger"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
)

// maxDiscrepancyPct is the largest relative difference between the heuristic
// total and the model's total that is accepted silently.
const maxDiscrepancyPct = 5.0

// maxPromptText bounds how much document text is sent to the model.
const maxPromptText = 6000

// ChatClient is the subset of the OpenAI client used for completion.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Completer asks a chat model for invoice fields the heuristics could not find.
type Completer struct {
	client     ChatClient
	model      string
	maxRetries int
	log        zerolog.Logger
}

type completionResponse struct {
	InvoiceNumber string `json:"invoice_number"`
	InvoiceDate   string `json:"invoice_date"`
	TotalAmount   string `json:"total_amount"`
}

// NewCompleter creates a completer backed by the OpenAI API.
func NewCompleter(apiKey, model string) *Completer {
	return NewCompleterWithClient(openai.NewClient(apiKey), model)
}

// NewCompleterWithClient creates a completer with an explicit client (for testing).
func NewCompleterWithClient(client ChatClient, model string) *Completer {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Completer{
		client:     client,
		model:      model,
		maxRetries: 3,
		log:        logger.WithComponent("invoice-completion"),
	}
}

// NeedsCompletion reports whether the candidate still carries a placeholder id,
// a zero total or a defaulted date.
func NeedsCompletion(c InvoiceCandidate) bool {
	return c.Defaulted(FieldID) || c.Defaulted(FieldAmount) || c.Defaulted(FieldDate)
}

// Complete fills defaulted fields of c from the model's reading of text.
// When both the heuristic and the model found a total and they disagree by
// more than 5%, the heuristic value is kept and a warning is recorded.
func (s *Completer) Complete(ctx context.Context, text string, c InvoiceCandidate) (InvoiceCandidate, error) {
	const op = "Completer.Complete"

	resp, err := s.ask(ctx, text)
	if err != nil {
		return c, fmt.Errorf("%s: %w", op, err)
	}

	out := c
	out.Defaults = nil
	out.Items = append([]InvoiceItem(nil), c.Items...)
	out.Warnings = append([]string(nil), c.Warnings...)

	if c.Defaulted(FieldID) {
		if no := strings.ToUpper(strings.TrimSpace(resp.InvoiceNumber)); no != "" {
			out.InvoiceNo = no
		} else {
			out.Defaults = append(out.Defaults, FieldID)
		}
	}

	modelTotal, modelHasTotal := ParseAmount(resp.TotalAmount)
	switch {
	case c.Defaulted(FieldAmount) && modelHasTotal:
		out.Total = modelTotal
		if c.Defaulted(FieldItems) && len(out.Items) == 1 {
			out.Items[0].Amount = modelTotal
		}
	case c.Defaulted(FieldAmount):
		out.Defaults = append(out.Defaults, FieldAmount)
	case modelHasTotal:
		if pct := discrepancyPct(c.Total, modelTotal); pct > maxDiscrepancyPct {
			warning := fmt.Sprintf("total %s differs from model total %s by %.1f%%",
				c.Total.StringFixed(2), modelTotal.StringFixed(2), pct)
			out.Warnings = append(out.Warnings, warning)
			s.log.Warn().
				Str("invoice_no", out.InvoiceNo).
				Float64("discrepancy_pct", pct).
				Msg("Amount discrepancy between heuristics and model")
		}
	}

	if c.Defaulted(FieldDate) {
		if d, ok := ParseDate(resp.InvoiceDate); ok {
			out.Date = d
		} else {
			out.Defaults = append(out.Defaults, FieldDate)
		}
	}

	if c.Defaulted(FieldItems) {
		out.Defaults = append(out.Defaults, FieldItems)
	}

	s.log.Info().
		Str("invoice_no", out.InvoiceNo).
		Strs("remaining_defaults", out.Defaults).
		Msg("Invoice candidate completed")
	return out, nil
}

func (s *Completer) ask(ctx context.Context, text string) (*completionResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       s.model,
			Temperature: 0,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prefix(text, maxPromptText)},
			},
			MaxTokens: 300,
		})
		if err != nil {
			lastErr = err
			s.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Msg("Completion request failed, retrying")
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("no response choices")
			continue
		}

		var parsed completionResponse
		content := resp.Choices[0].Message.Content
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			lastErr = fmt.Errorf("failed to parse completion JSON: %w", err)
			s.log.Warn().
				Err(err).
				Str("response", content).
				Int("attempt", attempt).
				Msg("Failed to parse completion response, retrying")
			continue
		}
		return &parsed, nil
	}
	return nil, fmt.Errorf("all %d attempts failed, last error: %w", s.maxRetries, lastErr)
}

func discrepancyPct(a, b decimal.Decimal) float64 {
	larger := decimal.Max(a, b)
	if larger.IsZero() {
		return 0
	}
	pct, _ := a.Sub(b).Abs().Div(larger).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

const systemPrompt = `You read invoices. Reply with a JSON object with exactly these string fields:
"invoice_number" (the invoice identifier as printed, or ""),
"invoice_date" (YYYY-MM-DD, or ""),
"total_amount" (the grand total payable as a plain number without currency, or "").
Do not guess values that are not printed on the document.`
