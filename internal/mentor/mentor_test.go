package mentor_test

import (
	"context"
	"strings"
	"testing"

	"github.com/normicyte/normicyte/internal/mentor"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, chunks <-chan string) string {
	t.Helper()
	var builder strings.Builder
	for chunk := range chunks {
		builder.WriteString(chunk)
	}
	return builder.String()
}

func TestRuleBased_Advise(t *testing.T) {
	t.Parallel()
	advisor := mentor.NewRuleBased()

	tests := []struct {
		name     string
		question string
		want     string
	}{
		{
			name:     "matches domain rule",
			question: "How do I check if the sender domain is real?",
			want:     "lookalike domains",
		},
		{
			name:     "matches bank rule in Finnish",
			question: "Pitäisikö pankkitilin muutos varmistaa?",
			want:     "second channel",
		},
		{
			name:     "falls back to general advice",
			question: "I am stuck",
			want:     "Urgency and secrecy",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			chunks, err := advisor.Advise(context.Background(), nil, tt.question)
			require.NoError(t, err)
			advice := collect(t, chunks)
			require.Contains(t, advice, tt.want)
		})
	}
}

func TestRuleBased_AdviseCancellation(t *testing.T) {
	t.Parallel()
	advisor := mentor.NewRuleBased()

	ctx, cancel := context.WithCancel(context.Background())
	chunks, err := advisor.Advise(ctx, nil, "what should I look at?")
	require.NoError(t, err)

	// Take one chunk, then walk away. The producer must terminate instead of
	// blocking forever on an abandoned channel.
	<-chunks
	cancel()
	for range chunks { //nolint:revive // draining until close
	}
}
