package convo

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer estimates token counts for conversation content. Spec §4.3's
// default heuristic is ceil(len(content)/4) plus a fixed role overhead;
// TiktokenTokenizer is an exact alternative for OpenAI-family models.
type Tokenizer interface {
	CountTokens(content string) int
}

const roleOverhead = 4

// HeuristicTokenizer implements spec §4.3's exact estimate:
// ceil(len(content)/4) + role overhead. Grounded on
// llm/context/tokenizer.go's EstimateTokenizer, simplified to the single
// formula the spec names (no separate chinese/english split).
type HeuristicTokenizer struct{}

// NewHeuristicTokenizer creates the default, dependency-free tokenizer.
func NewHeuristicTokenizer() *HeuristicTokenizer { return &HeuristicTokenizer{} }

func (HeuristicTokenizer) CountTokens(content string) int {
	if content == "" {
		return roleOverhead
	}
	return (len(content)+3)/4 + roleOverhead
}

// TiktokenTokenizer counts tokens exactly via tiktoken-go's BPE encodings,
// for callers that need precision over the heuristic (e.g. replaying real
// OpenAI-family usage). Grounded on llm/tokenizer/tiktoken.go: lazy encoder
// init, model-to-encoding table with prefix fallback.
type TiktokenTokenizer struct {
	encoding string

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4o-mini":   "o200k_base",
	"gpt-4-turbo":   "cl100k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
}

// NewTiktokenTokenizer creates a tiktoken-backed tokenizer for model,
// falling back to cl100k_base for unrecognized models.
func NewTiktokenTokenizer(model string) *TiktokenTokenizer {
	encoding, ok := modelEncodings[model]
	if !ok {
		for prefix, enc := range modelEncodings {
			if strings.HasPrefix(model, prefix) {
				encoding = enc
				ok = true
				break
			}
		}
	}
	if !ok {
		encoding = "cl100k_base"
	}
	return &TiktokenTokenizer{encoding: encoding}
}

func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = err
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// CountTokens returns the exact BPE token count plus role overhead, falling
// back to the heuristic if the encoding failed to load.
func (t *TiktokenTokenizer) CountTokens(content string) int {
	if err := t.init(); err != nil {
		return HeuristicTokenizer{}.CountTokens(content)
	}
	return len(t.enc.Encode(content, nil, nil)) + roleOverhead
}
