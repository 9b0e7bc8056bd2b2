package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	replies []string
	err     error
	calls   int
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: reply}}},
	}, nil
}

func TestCompleteFillsDefaults(t *testing.T) {
	candidate := NewWithClock(fixedClock).Invoice("Bill for consulting", nil)
	require.True(t, NeedsCompletion(candidate))

	chat := &fakeChat{replies: []string{
		`not json`,
		`{"invoice_number":"inv-77812","invoice_date":"2025-02-01","total_amount":"1,250.00"}`,
	}}
	completer := NewCompleterWithClient(chat, "")

	got, err := completer.Complete(context.Background(), "Bill for consulting", candidate)
	require.NoError(t, err)

	assert.Equal(t, 2, chat.calls)
	assert.Equal(t, "INV-77812", got.InvoiceNo)
	assert.Equal(t, day(2025, 2, 1), got.Date)
	assert.True(t, dec("1250").Equal(got.Total))
	require.Len(t, got.Items, 1)
	assert.True(t, dec("1250").Equal(got.Items[0].Amount))
	assert.Equal(t, []string{FieldItems}, got.Defaults)

	// the input candidate is left untouched
	assert.True(t, candidate.Items[0].Amount.IsZero())
}

func TestCompleteKeepsHeuristicTotalOnDiscrepancy(t *testing.T) {
	candidate := NewWithClock(fixedClock).Invoice("Total: 1,000.00", nil)
	require.True(t, candidate.Defaulted(FieldID))

	chat := &fakeChat{replies: []string{`{"invoice_number":"","invoice_date":"","total_amount":"1200"}`}}
	got, err := NewCompleterWithClient(chat, "gpt-4o").Complete(context.Background(), "Total: 1,000.00", candidate)
	require.NoError(t, err)

	assert.True(t, dec("1000").Equal(got.Total))
	require.Len(t, got.Warnings, 1)
	assert.Contains(t, got.Warnings[0], "differs")
	assert.Contains(t, got.Defaults, FieldID)
}

func TestCompleteWithinToleranceHasNoWarning(t *testing.T) {
	candidate := NewWithClock(fixedClock).Invoice("Total: 1,000.00", nil)
	chat := &fakeChat{replies: []string{`{"total_amount":"1030"}`}}

	got, err := NewCompleterWithClient(chat, "").Complete(context.Background(), "Total: 1,000.00", candidate)
	require.NoError(t, err)
	assert.Empty(t, got.Warnings)
}

func TestCompleteReturnsCandidateOnFailure(t *testing.T) {
	candidate := NewWithClock(fixedClock).Invoice("", nil)
	chat := &fakeChat{err: errors.New("rate limited")}

	got, err := NewCompleterWithClient(chat, "").Complete(context.Background(), "", candidate)
	require.Error(t, err)
	assert.Equal(t, 3, chat.calls)
	assert.Equal(t, candidate.InvoiceNo, got.InvoiceNo)
}
