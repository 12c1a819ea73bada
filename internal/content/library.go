package content

import (
	"encoding/json"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"hit/internal/model"
)

// Library serves the active catalog. Load replaces it from an override
// file; sections the file leaves empty keep their built-in values.
type Library struct {
	mu      sync.RWMutex
	base    Catalog
	catalog Catalog

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewLibrary(base Catalog) *Library {
	return &Library{
		base:    base,
		catalog: base,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (l *Library) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read catalog %s", path)
	}
	var override Catalog
	if err := json.Unmarshal(raw, &override); err != nil {
		return errors.Wrapf(err, "decode catalog %s", path)
	}
	merged := merge(l.base, override)

	l.mu.Lock()
	l.catalog = merged
	l.mu.Unlock()
	return nil
}

func merge(base, override Catalog) Catalog {
	out := base
	if override.FallbackSentence != "" {
		out.FallbackSentence = override.FallbackSentence
	}
	if len(override.SentencePrompts) > 0 {
		out.SentencePrompts = override.SentencePrompts
	}
	if len(override.ParagraphPrompts) > 0 {
		out.ParagraphPrompts = override.ParagraphPrompts
	}
	if len(override.Tips) > 0 {
		out.Tips = override.Tips
	}
	if len(override.PageTemplates) > 0 {
		out.PageTemplates = override.PageTemplates
	}
	if override.UsageTip != "" {
		out.UsageTip = override.UsageTip
	}
	return out
}

func (l *Library) Catalog() Catalog {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.catalog
}

func (l *Library) Fallback() string {
	return l.Catalog().FallbackSentence
}

// RandomPrompt picks a built-in practice text for mode.
func (l *Library) RandomPrompt(mode model.PromptMode) string {
	catalog := l.Catalog()
	pool := catalog.SentencePrompts
	if mode == model.ModeParagraph {
		pool = catalog.ParagraphPrompts
	}
	if len(pool) == 0 {
		return catalog.FallbackSentence
	}
	l.rngMu.Lock()
	defer l.rngMu.Unlock()
	return pool[l.rng.Intn(len(pool))]
}
