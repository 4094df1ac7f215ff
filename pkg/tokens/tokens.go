// Package tokens estimates prompt sizes with tiktoken. Local model names
// (mistral, llama2, ...) have no registered vocabulary, so anything
// unrecognized counts against the newest OpenAI encoding; that keeps the
// estimate honest enough for a size readout.
package tokens

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// fallbackEncoding covers models tiktoken has never heard of.
const fallbackEncoding = tokenizer.O200kBase

// Counter counts tokens, caching codecs by encoding.
type Counter struct {
	mu     sync.Mutex
	codecs map[tokenizer.Encoding]tokenizer.Codec
}

// NewCounter builds an empty Counter.
func NewCounter() *Counter {
	return &Counter{codecs: make(map[tokenizer.Encoding]tokenizer.Codec)}
}

// Count reports how many tokens text encodes to for the given model. The
// bool is false when no codec could be loaded at all; counting is
// best-effort and callers treat a false as "unknown", not an error.
func (c *Counter) Count(model, text string) (int, bool) {
	codec, err := c.codec(model)
	if err != nil {
		return 0, false
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, false
	}
	return len(ids), true
}

func (c *Counter) codec(model string) (tokenizer.Codec, error) {
	if codec, err := tokenizer.ForModel(tokenizer.Model(model)); err == nil {
		return codec, nil
	}
	return c.cached(fallbackEncoding)
}

func (c *Counter) cached(enc tokenizer.Encoding) (tokenizer.Codec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if codec, ok := c.codecs[enc]; ok {
		return codec, nil
	}
	codec, err := tokenizer.Get(enc)
	if err != nil {
		return nil, err
	}
	c.codecs[enc] = codec
	return codec, nil
}
