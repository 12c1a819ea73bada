package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/valyala/fasttemplate"

	"hit/internal/model"
)

var (
	sentencePromptTemplate = fasttemplate.New(
		"Generate a single, elegant, and inspirational sentence for cursive handwriting practice (approx 15-20 words).{{focus}} "+
			"Return ONLY the text of the prompt without any introductory remarks.",
		"{{", "}}")
	paragraphPromptTemplate = fasttemplate.New(
		"Generate a sophisticated, substantial paragraph (approx 180-250 words) about art, history, or philosophy for deep handwriting practice. "+
			"Ensure the vocabulary is varied and elegant.{{focus}} "+
			"Return ONLY the text of the prompt without any introductory remarks.",
		"{{", "}}")
)

// GeneratePrompt asks for a fresh practice text. focusLetters, when given,
// steer the vocabulary toward words containing them.
func (c *Client) GeneratePrompt(ctx context.Context, mode model.PromptMode, focusLetters []string) (string, error) {
	tpl := sentencePromptTemplate
	if mode == model.ModeParagraph {
		tpl = paragraphPromptTemplate
	}
	text := tpl.ExecuteString(map[string]interface{}{
		"focus": focusClause(focusLetters),
	})

	resp, err := c.generate(ctx, c.textModel, generateRequest{
		Contents: []content{{Parts: []part{{Text: text}}}},
	})
	if err != nil {
		return "", err
	}
	prompt, err := candidateText(resp)
	if err != nil {
		return "", err
	}
	prompt = strings.Trim(strings.TrimSpace(prompt), `"`)
	if prompt == "" {
		return "", errors.Wrap(ErrInvalidResponse, "empty prompt")
	}
	return prompt, nil
}

func focusClause(letters []string) string {
	letters = uniqueNonEmptyStrings(letters)
	if len(letters) == 0 {
		return ""
	}
	return " Try to include words with these letters: " + strings.Join(letters, ", ") + "."
}

func uniqueNonEmptyStrings(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		result = append(result, item)
	}
	return result
}
