package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"anthropic content blocks", `{"content":[{"type":"text","text":"{\"score\":1}"}]}`, `{"score":1}`},
		{"messages array", `{"messages":[{"role":"assistant","content":"hello"}]}`, "hello"},
		{"completion field", `{"completion":"done"}`, "done"},
		{"choices message", `{"choices":[{"message":{"content":"via choices"}}]}`, "via choices"},
		{"choices text", `{"choices":[{"text":"plain"}]}`, "plain"},
		{"not json", `just text`, "just text"},
		{"unknown shape", `{"foo":"bar"}`, `{"foo":"bar"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractText([]byte(tt.body)))
		})
	}
}
