package openai

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Encoder state is shared and lazily initialized; encodings are
// immutable after load.
var (
	encoderMu sync.Mutex
	encoders  = make(map[string]*tiktoken.Tiktoken)
)

const fallbackEncoding = "cl100k_base"

// countTokens encodes text with the tokenizer matching model. Callers
// treat an error as "exact counter unavailable" and fall back to the
// character heuristic.
func countTokens(model, text string) (int, error) {
	encoder, err := encoderFor(model)
	if err != nil {
		return 0, fmt.Errorf("tokenizer unavailable for model %s: %w", model, err)
	}

	return len(encoder.Encode(text, nil, nil)), nil
}

func encoderFor(model string) (*tiktoken.Tiktoken, error) {
	encoderMu.Lock()
	defer encoderMu.Unlock()

	if encoder, ok := encoders[model]; ok {
		return encoder, nil
	}

	encoder, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoder, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, err
		}
	}

	encoders[model] = encoder
	return encoder, nil
}
