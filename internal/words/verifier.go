// internal/words/verifier.go
//
// Word validity lookups against an external dictionary service.
//
// Responsibilities:
//   - Check each submitted word independently against the
//     Merriam-Webster collegiate API.
//   - Isolate failures per word: a lookup error records an "unknown"
//     result for that word and the rest of the batch still completes.
//
// A word counts as valid when the first entry in the API response is a
// real dictionary entry (has a `meta` object) and is not an
// abbreviation. A response of spelling suggestions (plain strings)
// means the word does not exist.
//
// Environment variables:
//   DICTIONARY_KEY      - API key (required for real lookups).
//   DICTIONARY_API_URL  - base URL override, used by tests.

package words

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the collegiate dictionary endpoint.
const DefaultBaseURL = "https://dictionaryapi.com/api/v3/references/collegiate/json"

// Lookup results, stringly typed for wire compatibility.
const (
	ResultValid   = "true"
	ResultInvalid = "false"
	ResultUnknown = "unknown"
)

// Verifier performs batched word lookups.
type Verifier struct {
	key     string
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewVerifier constructs a verifier. An empty baseURL falls back to the
// real dictionary service.
func NewVerifier(key, baseURL string, log zerolog.Logger) *Verifier {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Verifier{
		key:     key,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// Verify checks every word and returns word -> "true"/"false"/"unknown".
// One word's failure never aborts the batch.
func (v *Verifier) Verify(ctx context.Context, words []string) map[string]string {
	results := make(map[string]string, len(words))
	for _, w := range words {
		res, err := v.lookup(ctx, w)
		if err != nil {
			v.log.Warn().Err(err).Str("word", w).Msg("dictionary lookup failed")
			results[w] = ResultUnknown
			continue
		}
		results[w] = res
	}
	return results
}

// dictEntry is the slice of a response entry the verifier cares about.
type dictEntry struct {
	Meta *struct {
		ID string `json:"id"`
	} `json:"meta"`
	Fl string `json:"fl"`
}

// lookup checks one word.
func (v *Verifier) lookup(ctx context.Context, word string) (string, error) {
	u := v.baseURL + "/" + url.PathEscape(word) + "?key=" + url.QueryEscape(v.key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("dictionary api: status %d", resp.StatusCode)
	}

	var entries []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return "", fmt.Errorf("dictionary api: decode: %w", err)
	}
	if len(entries) == 0 {
		return ResultInvalid, nil
	}
	var first dictEntry
	if err := json.Unmarshal(entries[0], &first); err != nil {
		// Suggestions come back as plain strings; the word is not a
		// dictionary entry.
		return ResultInvalid, nil
	}
	if first.Meta != nil && first.Fl != "abbreviation" {
		return ResultValid, nil
	}
	return ResultInvalid, nil
}
