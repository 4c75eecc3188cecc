package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFallbackExtractorKeywords(t *testing.T) {
	question := "How quickly is the fintech sector in Europe adopting instant settlement, and what should a director at Acme Payments expect?"

	extraction, err := FallbackExtractor{}.Extract(context.Background(), question)
	require.NoError(t, err)

	require.Equal(t, []string{"fintech"}, extraction.Industries)
	require.Equal(t, "europe", extraction.Geography)
	require.Equal(t, "director", extraction.SeniorityRequired)
	require.Contains(t, extraction.Topics, "Acme Payments")
	require.False(t, extraction.Empty())
}

func TestFallbackExtractorDeterministic(t *testing.T) {
	question := "What is the outlook for semiconductor capacity in Japan under senior procurement pressure?"

	first, err := FallbackExtractor{}.Extract(context.Background(), question)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := FallbackExtractor{}.Extract(context.Background(), question)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestFallbackExtractorNoSignal(t *testing.T) {
	extraction, err := FallbackExtractor{}.Extract(context.Background(), "why is the sky blue at noon?")
	require.NoError(t, err)
	require.Empty(t, extraction.Industries)
	require.Empty(t, extraction.Geography)
	require.Empty(t, extraction.Topics)
}
