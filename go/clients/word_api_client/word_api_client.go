package word_api_client

import (
	"github.com/mcdev12/wordduel/go/clients"
)

type WordApiClient struct {
	*clients.BaseClient
}

// NewWordApiClient creates a client for baseURL. An empty baseURL uses the
// public endpoint; apiKey is optional.
func NewWordApiClient(baseURL, apiKey string) *WordApiClient {
	if baseURL == "" {
		baseURL = BaseURL
	}
	client := &WordApiClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetHeader(APIKeyHeader, apiKey)
	}

	return client
}
