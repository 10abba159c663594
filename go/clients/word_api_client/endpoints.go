package word_api_client

const (
	// Base URL
	BaseURL = "https://random-word-api.herokuapp.com"

	// API Endpoints
	WordEndpoint      = "/word"
	LanguagesEndpoint = "/languages"

	// Query parameters
	LengthParam = "length"
	LangParam   = "lang"
	NumberParam = "number"

	// Headers
	APIKeyHeader = "X-Api-Key"
)
