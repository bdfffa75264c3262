package main

import (
	"flag"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommandLine(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		cmd   string
		rest  []string
		model string
	}{
		{"no command", nil, "serve", nil, "gpt2"},
		{"flag before command", []string{"-model", "distilgpt2", "generate", "The sky is"}, "generate", []string{"The sky is"}, "distilgpt2"},
		{"flag after command", []string{"generate", "-model", "distilgpt2", "The sky is"}, "generate", []string{"The sky is"}, "distilgpt2"},
		{"flag after prompt", []string{"generate", "The sky is", "-model", "distilgpt2"}, "generate", []string{"The sky is"}, "distilgpt2"},
		{"words around flag", []string{"ask", "What", "-model=distilgpt2", "is", "Python?"}, "ask", []string{"What", "is", "Python?"}, "distilgpt2"},
		{"double dash", []string{"generate", "--", "-model", "distilgpt2"}, "generate", []string{"-model", "distilgpt2"}, "gpt2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("mldemo", flag.ContinueOnError)
			model := fs.String("model", "gpt2", "")

			cmd, rest, err := parseCommandLine(fs, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.cmd, cmd)
			assert.Equal(t, tt.rest, rest)
			assert.Equal(t, tt.model, *model)
		})
	}
}

func TestParseCommandLineUnknownFlag(t *testing.T) {
	fs := flag.NewFlagSet("mldemo", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	_, _, err := parseCommandLine(fs, []string{"generate", "hi", "-temperature", "2"})
	assert.Error(t, err)
}
