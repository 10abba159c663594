package word_api_client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// GetWords returns count random words of the given length. lang may be empty
// for the API default.
func (c *WordApiClient) GetWords(ctx context.Context, length, count int, lang string) ([]string, error) {
	q := url.Values{}
	q.Set(LengthParam, strconv.Itoa(length))
	q.Set(NumberParam, strconv.Itoa(count))
	if lang != "" && lang != "en" {
		q.Set(LangParam, lang)
	}

	body, err := c.Get(ctx, WordEndpoint+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to get words: %w", err)
	}

	var words []string
	if err := json.Unmarshal(body, &words); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	return words, nil
}

// GetLanguages lists the language codes the API serves.
func (c *WordApiClient) GetLanguages(ctx context.Context) ([]string, error) {
	body, err := c.Get(ctx, LanguagesEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get languages: %w", err)
	}

	var langs []string
	if err := json.Unmarshal(body, &langs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	return langs, nil
}
