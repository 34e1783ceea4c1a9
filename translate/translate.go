// Package translate fills missing table entries by machine translation
// using HTTP translation services: the free Google Translate endpoint,
// Google AI (Gemini), Groq, OpenCode (multi-format), Ollama and any
// OpenAI-compatible endpoint.
//
// Format placeholders (%@, %d, %1$@, \(expr), {name}) are swapped for
// opaque tokens before a text is sent and restored afterwards; a
// translation that loses one is rejected.
package translate

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/minios-linux/lokscan/diag"
	"github.com/minios-linux/lokscan/langmeta"
)

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	ProviderGoogleTranslate = "google-translate"
	ProviderGoogle          = "google"
	ProviderGroq            = "groq"
	ProviderOpenCode        = "opencode"
	ProviderCustomOpenAI    = "custom-openai"
	ProviderOllama          = "ollama"
)

// DefaultProvider needs no API key.
const DefaultProvider = ProviderGoogleTranslate

// ---------------------------------------------------------------------------
// Provider configuration
// ---------------------------------------------------------------------------

// Provider holds the configuration for a translation service.
type Provider struct {
	// ID is the provider identifier (google-translate, google, groq, ...).
	ID string
	// Name is the display name.
	Name string
	// BaseURL is the API base URL.
	BaseURL string
	// APIKey is the authentication key (empty for keyless services).
	APIKey string
	// Model is the model identifier; AI providers only.
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the request timeout.
	Timeout time.Duration
}

// IsAI reports whether the provider is a chat model that takes prompts.
func (p Provider) IsAI() bool { return p.ID != ProviderGoogleTranslate }

// NeedsAPIKey reports whether requests must carry an API key.
func (p Provider) NeedsAPIKey() bool {
	switch p.ID {
	case ProviderGoogle, ProviderGroq, ProviderOpenCode:
		return true
	}
	return false
}

// DefaultProviders returns the pre-configured provider definitions.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		ProviderGoogleTranslate: {
			ID:      ProviderGoogleTranslate,
			Name:    "Google Translate (free)",
			BaseURL: "https://translate.googleapis.com",
			Timeout: 10 * time.Second,
		},
		ProviderGoogle: {
			ID:      ProviderGoogle,
			Name:    "Google AI (Gemini)",
			BaseURL: "https://generativelanguage.googleapis.com",
			Model:   "gemini-2.5-flash",
			Timeout: 120 * time.Second,
		},
		ProviderGroq: {
			ID:      ProviderGroq,
			Name:    "Groq",
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.3-70b-versatile",
			Timeout: 60 * time.Second,
		},
		ProviderOpenCode: {
			ID:      ProviderOpenCode,
			Name:    "OpenCode",
			BaseURL: "https://opencode.ai/zen/v1",
			Timeout: 120 * time.Second,
		},
		ProviderCustomOpenAI: {
			ID:      ProviderCustomOpenAI,
			Name:    "Custom OpenAI",
			Timeout: 60 * time.Second,
		},
		ProviderOllama: {
			ID:      ProviderOllama,
			Name:    "Ollama",
			BaseURL: "http://localhost:11434/v1",
			Timeout: 120 * time.Second,
		},
	}
}

// ProviderIDs returns the known provider IDs, sorted.
func ProviderIDs() []string {
	var ids []string
	for id := range DefaultProviders() {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LookupProvider returns the default definition of id.
func LookupProvider(id string) (Provider, error) {
	p, ok := DefaultProviders()[id]
	if !ok {
		return Provider{}, diag.Configf("translation.provider", "unknown provider %q (want one of %s)", id, strings.Join(ProviderIDs(), ", "))
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Memory remembers translations between runs. *lockfile.LockFile
// implements it.
type Memory interface {
	Lookup(src, tgt, text string) (string, bool)
	Remember(src, tgt, text, translation string)
}

// Options configures a Client.
type Options struct {
	Provider Provider
	// MaxRetries is the number of retries on network errors, 429 and 5xx.
	MaxRetries int
	// Timeout overrides Provider.Timeout.
	Timeout time.Duration
	// ChunkSize is the number of texts per AI request in TranslateBatch.
	ChunkSize int
	// SystemPrompt overrides the built-in prompt; {{targetLang}} is
	// replaced with the target language name.
	SystemPrompt string
	// Memory is consulted before and filled after every request.
	Memory Memory
	Logger *zap.Logger
}

func (o *Options) effectiveTimeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	if o.Provider.Timeout > 0 {
		return o.Provider.Timeout
	}
	return 120 * time.Second
}

func (o *Options) effectiveMaxRetries() int {
	if o.MaxRetries > 0 {
		return o.MaxRetries
	}
	return 3
}

func (o *Options) effectiveChunkSize() int {
	if o.ChunkSize > 0 {
		return o.ChunkSize
	}
	return 40
}

// Client translates texts through one provider. It is safe for concurrent
// use; a 429 from any request pauses all of them.
type Client struct {
	opts    Options
	prov    Provider
	http    *http.Client
	rl      *rateLimitState
	log     *zap.Logger
	backoff time.Duration
}

// New validates opts and returns a Client.
func New(opts Options) (*Client, error) {
	p := opts.Provider
	if _, ok := DefaultProviders()[p.ID]; !ok {
		_, err := LookupProvider(p.ID)
		return nil, err
	}
	if p.ID == ProviderCustomOpenAI && p.BaseURL == "" {
		return nil, diag.Configf("translation.base_url", "provider %s needs a base URL", p.ID)
	}
	if p.NeedsAPIKey() && p.APIKey == "" {
		return nil, diag.Configf("translation", "provider %s needs an API key (lokscan auth set %s)", p.ID, p.ID)
	}
	if p.IsAI() && p.Model == "" {
		return nil, diag.Configf("translation.model", "provider %s needs a model", p.ID)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		opts:    opts,
		prov:    p,
		http:    makeHTTPClient(p.Proxy, opts.effectiveTimeout()),
		rl:      &rateLimitState{},
		log:     log.With(zap.String("provider", p.ID)),
		backoff: time.Second,
	}, nil
}

// Provider returns the provider the client talks to.
func (c *Client) Provider() Provider { return c.prov }

func sameLanguage(a, b string) bool {
	return strings.EqualFold(langmeta.Canonical(a), langmeta.Canonical(b))
}

// Translate translates text from src to tgt. Blank texts and same-language
// requests are returned unchanged. Failures are *diag.TranslationError.
func (c *Client) Translate(ctx context.Context, text, src, tgt string) (string, error) {
	if strings.TrimSpace(text) == "" || sameLanguage(src, tgt) {
		return text, nil
	}
	if out, ok := c.recall(src, tgt, text); ok {
		return out, nil
	}

	p := protect(text)
	var out string
	var err error
	if c.prov.IsAI() {
		var outs []string
		outs, err = c.translateChunk(ctx, []string{p.text}, src, tgt)
		if err == nil {
			out = outs[0]
		}
	} else {
		out, err = c.callGoogleTranslate(ctx, p.text, src, tgt)
	}
	if err == nil {
		out, err = p.restore(out)
	}
	if err != nil {
		return "", &diag.TranslationError{Lang: tgt, Err: err}
	}
	c.remember(src, tgt, text, out)
	return out, nil
}

// TranslateBatch translates texts from src to tgt, keeping order. AI
// providers receive the texts in chunks as one JSON array per request; the
// free endpoint is called once per text. Texts found in the memory are not
// sent.
func (c *Client) TranslateBatch(ctx context.Context, texts []string, src, tgt string) ([]string, error) {
	out := make([]string, len(texts))
	var pending []int
	for i, text := range texts {
		if strings.TrimSpace(text) == "" || sameLanguage(src, tgt) {
			out[i] = text
			continue
		}
		if t, ok := c.recall(src, tgt, text); ok {
			out[i] = t
			continue
		}
		pending = append(pending, i)
	}

	if !c.prov.IsAI() {
		for _, i := range pending {
			t, err := c.Translate(ctx, texts[i], src, tgt)
			if err != nil {
				return nil, err
			}
			out[i] = t
		}
		return out, nil
	}

	size := c.opts.effectiveChunkSize()
	for start := 0; start < len(pending); start += size {
		chunk := pending[start:min(start+size, len(pending))]
		prot := make([]protected, len(chunk))
		send := make([]string, len(chunk))
		for j, i := range chunk {
			prot[j] = protect(texts[i])
			send[j] = prot[j].text
		}
		got, err := c.translateChunk(ctx, send, src, tgt)
		if err != nil {
			return nil, &diag.TranslationError{Lang: tgt, Err: err}
		}
		for j, i := range chunk {
			t, err := prot[j].restore(got[j])
			if err != nil {
				return nil, &diag.TranslationError{Lang: tgt, Err: fmt.Errorf("%q: %w", texts[i], err)}
			}
			out[i] = t
			c.remember(src, tgt, texts[i], t)
		}
		c.log.Debug("translated chunk", zap.String("lang", tgt), zap.Int("entries", len(chunk)))
	}
	return out, nil
}

func (c *Client) recall(src, tgt, text string) (string, bool) {
	if c.opts.Memory == nil {
		return "", false
	}
	out, ok := c.opts.Memory.Lookup(src, tgt, text)
	if ok {
		c.log.Debug("translation memory hit", zap.String("lang", tgt), zap.String("text", truncate(text, 40)))
	}
	return out, ok
}

func (c *Client) remember(src, tgt, text, translation string) {
	if c.opts.Memory != nil {
		c.opts.Memory.Remember(src, tgt, text, translation)
	}
}

// translateChunk sends texts to an AI provider and returns exactly
// len(texts) translations.
func (c *Client) translateChunk(ctx context.Context, texts []string, src, tgt string) ([]string, error) {
	var userMsg strings.Builder
	fmt.Fprintf(&userMsg, "Translate these entries from %s to %s:\n\n", langmeta.EnglishName(src), langmeta.EnglishName(tgt))
	for i, t := range texts {
		fmt.Fprintf(&userMsg, "%d. %s\n", i+1, escapeForPrompt(t))
	}
	fmt.Fprintf(&userMsg, "\nReturn a JSON array with exactly %d translated strings.", len(texts))

	content, err := c.callProvider(ctx, c.systemPrompt(tgt), userMsg.String())
	if err != nil {
		return nil, err
	}
	got, err := parseTranslations(content, len(texts))
	if err != nil {
		return nil, err
	}
	if len(got) != len(texts) {
		return nil, fmt.Errorf("got %d translations, expected %d", len(got), len(texts))
	}
	return got, nil
}

func (c *Client) systemPrompt(tgt string) string {
	prompt := c.opts.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	name := langmeta.EnglishName(tgt)
	if native := langmeta.Resolve(tgt).Name; native != tgt && native != name {
		name += " (" + native + ")"
	}
	return strings.ReplaceAll(prompt, "{{targetLang}}", name)
}

// escapeForPrompt prepares a string for inclusion in the AI prompt.
func escapeForPrompt(s string) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return fmt.Sprintf(`"%s"`, s)
}

// truncate truncates a string to maxLen bytes.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// DefaultSystemPrompt is the system prompt for translating app UI strings.
const DefaultSystemPrompt = `You are a professional translator specializing in mobile app localization. You are translating user interface strings of an iOS application into {{targetLang}}.

CONTEXT AWARENESS:
- The audience is app users on phones and tablets
- Tone: friendly, clear and concise; UI space is limited
- Use the terminology Apple uses for {{targetLang}} in its own apps

IMPORTANT TRANSLATION PRINCIPLES:
- Translate for NATURALNESS and FLUENCY in {{targetLang}}, not word-for-word
- Keep button and menu labels short
- Maintain the original tone and intent

TECHNICAL REQUIREMENTS:
- Return ONLY a JSON array of translated strings, one for each input entry, in the same order.
- Tokens of the form __PH0__, __PH1__, ... are placeholders: copy each one exactly once, unchanged.
- Preserve leading/trailing whitespace, newlines, and punctuation patterns.
- Keep brand names and proper nouns unchanged.
- Return ONLY the JSON array, no explanations or markdown code blocks.`
