package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScrapeErrorMessage(t *testing.T) {
	err := NewNavigation("4711", "page load timed out", stderrors.New("context deadline exceeded"))
	assert.Equal(t, "[navigation] 4711: page load timed out - context deadline exceeded", err.Error())
	assert.True(t, err.IsRetryable())

	err = NewValidation("SCRAPE_DELAY_SECONDS", "must not be negative")
	assert.Equal(t, "[validation] -: SCRAPE_DELAY_SECONDS: must not be negative", err.Error())
	assert.False(t, err.IsRetryable())
}

func TestTypeOfWalksWrappedChain(t *testing.T) {
	base := NewPersistence("42", "insert snapshot", stderrors.New("connection reset"))
	wrapped := fmt.Errorf("sweep: %w", base)

	assert.Equal(t, ErrorTypePersistence, TypeOf(wrapped))
	assert.Equal(t, ErrorType(""), TypeOf(stderrors.New("plain")))
	assert.ErrorIs(t, wrapped, base)
}

func TestWithProduct(t *testing.T) {
	rl := NewRateLimit("www.idealo.de", 10*time.Minute)
	attributed := WithProduct(rl, "99", ErrorTypeNavigation)
	assert.Equal(t, ErrorTypeRateLimit, attributed.Type)
	assert.Equal(t, "99", attributed.ProductID)
	assert.Empty(t, rl.ProductID)

	plain := WithProduct(stderrors.New("boom"), "7", ErrorTypeExtraction)
	assert.Equal(t, ErrorTypeExtraction, plain.Type)
	assert.Equal(t, "7", plain.ProductID)
	assert.EqualError(t, plain.Unwrap(), "boom")
}
