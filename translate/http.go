package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Rate limit handling
// ---------------------------------------------------------------------------

// rateLimitState pauses every request of a client after a 429.
type rateLimitState struct {
	mu       sync.Mutex
	paused   int32 // atomic: 1 = paused
	pauseEnd time.Time
}

func (r *rateLimitState) isPaused() bool {
	return atomic.LoadInt32(&r.paused) == 1
}

func (r *rateLimitState) pause(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauseEnd = time.Now().Add(duration)
	atomic.StoreInt32(&r.paused, 1)
}

func (r *rateLimitState) unpause() {
	atomic.StoreInt32(&r.paused, 0)
}

func (r *rateLimitState) waitIfPaused(ctx context.Context) error {
	for r.isPaused() {
		r.mu.Lock()
		remaining := time.Until(r.pauseEnd)
		r.mu.Unlock()
		if remaining <= 0 {
			r.unpause()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(min(remaining, 100*time.Millisecond)):
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// HTTP client
// ---------------------------------------------------------------------------

func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// do sends the request built by newReq, retrying network errors and 5xx
// with exponential backoff. A 429 pauses the whole client for the delay
// the server asked for. It returns the body of the first 200 response.
func (c *Client) do(ctx context.Context, newReq func(context.Context) (*http.Request, error)) ([]byte, error) {
	maxRetries := c.opts.effectiveMaxRetries()
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.rl.waitIfPaused(ctx); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := newReq(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		c.log.Debug("request", zap.Int("attempt", attempt+1), zap.String("method", req.Method), zap.String("url", req.URL.Redacted()))

		backoff := c.backoff * time.Duration(math.Pow(2, float64(attempt)))
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt < maxRetries {
				c.log.Debug("request failed, retrying", zap.Error(err), zap.Duration("wait", backoff))
				if err := sleep(ctx, backoff); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("API request failed: %w", err)
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			delay := retryDelay(resp.Header, respBody)
			c.log.Warn("rate limited", zap.Duration("wait", delay), zap.Int("attempt", attempt+1), zap.Int("max_retries", maxRetries))
			if attempt < maxRetries {
				c.rl.pause(delay)
				if err := sleep(ctx, delay); err != nil {
					return nil, err
				}
				c.rl.unpause()
				continue
			}
			return nil, fmt.Errorf("rate limited after %d retries: %s", maxRetries, truncate(string(respBody), 300))
		}

		if resp.StatusCode != http.StatusOK {
			if attempt < maxRetries && resp.StatusCode >= 500 {
				c.log.Debug("server error, retrying", zap.Int("status", resp.StatusCode), zap.Duration("wait", backoff))
				if err := sleep(ctx, backoff); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(respBody), 500))
		}
		return respBody, nil
	}

	return nil, fmt.Errorf("exhausted all %d retries", maxRetries)
}

// retryDelay reads the wait time of a 429 from the Retry-After header or
// from a Google RetryInfo error body.
func retryDelay(h http.Header, body []byte) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
		if t, err := http.ParseTime(v); err == nil {
			return max(time.Until(t), 0)
		}
	}
	return parseRetryDelay(body)
}

// parseRetryDelay extracts the retry delay from a Google API 429 error
// response. Falls back to 65 seconds.
func parseRetryDelay(body []byte) time.Duration {
	const defaultDelay = 65 * time.Second // 60s + 5s buffer

	var errResp struct {
		Error struct {
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil {
		return defaultDelay
	}

	for _, detail := range errResp.Error.Details {
		if strings.Contains(detail.Type, "RetryInfo") && detail.RetryDelay != "" {
			d := strings.TrimSuffix(detail.RetryDelay, "s")
			if secs, err := strconv.ParseFloat(d, 64); err == nil {
				return time.Duration(secs*1000)*time.Millisecond + 5*time.Second
			}
		}
	}

	return defaultDelay
}

// ---------------------------------------------------------------------------
// Google Translate (free endpoint)
// ---------------------------------------------------------------------------

// googleLangCodes maps Apple locale names to the codes the free endpoint
// understands.
var googleLangCodes = map[string]string{
	"zh-Hans": "zh-CN",
	"zh-Hant": "zh-TW",
	"zh-HK":   "zh-TW",
	"nb":      "no",
	"pt-PT":   "pt",
	"pt-BR":   "pt",
	"Base":    "en",
}

func googleLangCode(lang string) string {
	if code, ok := googleLangCodes[lang]; ok {
		return code
	}
	return lang
}

func (c *Client) callGoogleTranslate(ctx context.Context, text, src, tgt string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", googleLangCode(src))
	q.Set("tl", googleLangCode(tgt))
	q.Set("dt", "t")
	q.Set("q", text)
	endpoint := strings.TrimRight(c.prov.BaseURL, "/") + "/translate_a/single?" + q.Encode()

	body, err := c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0")
		return req, nil
	})
	if err != nil {
		return "", err
	}
	return parseGoogleTranslate(body)
}

// parseGoogleTranslate joins the translated segments of a gtx response:
// [[["Hallo ","Hello ",...],["Welt","world",...]], null, "en", ...].
func parseGoogleTranslate(body []byte) (string, error) {
	var data []any
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty response")
	}
	segments, ok := data[0].([]any)
	if !ok {
		return "", fmt.Errorf("could not extract text from response: %s", truncate(string(body), 200))
	}
	var b strings.Builder
	for _, seg := range segments {
		parts, ok := seg.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			b.WriteString(s)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("empty translation in response")
	}
	return b.String(), nil
}

// ---------------------------------------------------------------------------
// AI providers
// ---------------------------------------------------------------------------

// apiFormat identifies the request/response wire format of an AI provider.
type apiFormat int

const (
	formatOpenAIChat      apiFormat = iota // OpenAI chat/completions
	formatGeminiNative                     // Google Gemini generateContent
	formatAnthropic                        // Anthropic messages
	formatOpenAIResponses                  // OpenAI responses API
)

func buildOpenAIChatRequest(model, systemPrompt, userPrompt string, temperature float64) ([]byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	req := struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		Stream      bool    `json:"stream"`
	}{
		Model: model,
		Messages: []msg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
	}
	return json.Marshal(req)
}

func buildGeminiRequest(systemPrompt, userPrompt string, temperature float64) ([]byte, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}
	type genConfig struct {
		Temperature float64 `json:"temperature"`
	}
	req := struct {
		Contents          []content `json:"contents"`
		GenerationConfig  genConfig `json:"generationConfig"`
		SystemInstruction *content  `json:"systemInstruction,omitempty"`
	}{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: userPrompt}}},
		},
		GenerationConfig: genConfig{Temperature: temperature},
	}
	if systemPrompt != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: systemPrompt}}}
	}
	return json.Marshal(req)
}

func buildAnthropicRequest(model, systemPrompt, userPrompt string) ([]byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	req := struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		System    string `json:"system,omitempty"`
		Messages  []msg  `json:"messages"`
	}{
		Model:     model,
		MaxTokens: 8192,
		System:    systemPrompt,
		Messages:  []msg{{Role: "user", Content: userPrompt}},
	}
	return json.Marshal(req)
}

func buildOpenAIResponsesRequest(model, prompt string) ([]byte, error) {
	req := struct {
		Model string `json:"model"`
		Input string `json:"input"`
	}{
		Model: model,
		Input: prompt,
	}
	return json.Marshal(req)
}

// formatFor picks the wire format. OpenCode serves several vendors and is
// dispatched by model prefix.
func formatFor(p Provider) apiFormat {
	switch p.ID {
	case ProviderGoogle:
		return formatGeminiNative
	case ProviderOpenCode:
		switch {
		case strings.HasPrefix(p.Model, "gemini-"):
			return formatGeminiNative
		case strings.HasPrefix(p.Model, "claude-"):
			return formatAnthropic
		case strings.HasPrefix(p.Model, "gpt-"):
			return formatOpenAIResponses
		}
	}
	return formatOpenAIChat
}

func buildHTTPRequest(prov Provider, systemPrompt, userPrompt string, format apiFormat) (string, map[string]string, []byte, error) {
	headers := map[string]string{
		"Content-Type": "application/json",
	}
	base := strings.TrimRight(prov.BaseURL, "/")

	var endpoint string
	var body []byte
	var err error

	switch format {
	case formatGeminiNative:
		if prov.ID == ProviderOpenCode {
			endpoint = fmt.Sprintf("%s/models/%s", base, prov.Model)
		} else {
			endpoint = fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, prov.Model)
		}
		if prov.APIKey != "" {
			headers["x-goog-api-key"] = prov.APIKey
		}
		body, err = buildGeminiRequest(systemPrompt, userPrompt, 0.3)

	case formatAnthropic:
		endpoint = base + "/messages"
		if prov.APIKey != "" {
			headers["x-api-key"] = prov.APIKey
		}
		headers["anthropic-version"] = "2023-06-01"
		body, err = buildAnthropicRequest(prov.Model, systemPrompt, userPrompt)

	case formatOpenAIResponses:
		endpoint = base + "/responses"
		if prov.APIKey != "" {
			headers["Authorization"] = "Bearer " + prov.APIKey
		}
		body, err = buildOpenAIResponsesRequest(prov.Model, systemPrompt+"\n\n"+userPrompt)

	default: // formatOpenAIChat
		endpoint = base
		if !strings.HasSuffix(base, "/chat/completions") {
			endpoint = base + "/chat/completions"
		}
		if prov.APIKey != "" {
			headers["Authorization"] = "Bearer " + prov.APIKey
		}
		body, err = buildOpenAIChatRequest(prov.Model, systemPrompt, userPrompt, 0.3)
	}

	if err != nil {
		return "", nil, nil, err
	}
	return endpoint, headers, body, nil
}

// callProvider sends one prompt and returns the model's text.
func (c *Client) callProvider(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	endpoint, headers, body, err := buildHTTPRequest(c.prov, systemPrompt, userPrompt, formatFor(c.prov))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	respBody, err := c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
	if err != nil {
		return "", err
	}
	return extractResponseText(respBody)
}

// extractResponseText pulls the generated text out of any supported
// response format.
func extractResponseText(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}

	if errObj, ok := raw["error"]; ok && errObj != nil {
		if errMap, ok := errObj.(map[string]any); ok {
			if msg, ok := errMap["message"].(string); ok {
				return "", fmt.Errorf("API error: %s", msg)
			}
		}
		return "", fmt.Errorf("API error: %v", errObj)
	}

	// OpenAI chat: choices[0].message.content
	if choices, ok := raw["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				if content, ok := message["content"].(string); ok {
					return content, nil
				}
			}
		}
	}

	// Gemini: candidates[0].content.parts[0].text
	if candidates, ok := raw["candidates"].([]any); ok && len(candidates) > 0 {
		if candidate, ok := candidates[0].(map[string]any); ok {
			if content, ok := candidate["content"].(map[string]any); ok {
				if parts, ok := content["parts"].([]any); ok && len(parts) > 0 {
					if part, ok := parts[0].(map[string]any); ok {
						if text, ok := part["text"].(string); ok {
							return text, nil
						}
					}
				}
			}
		}
	}

	// Anthropic: content[].text where type == "text"
	if contentArr, ok := raw["content"].([]any); ok {
		for _, c := range contentArr {
			if block, ok := c.(map[string]any); ok && block["type"] == "text" {
				if text, ok := block["text"].(string); ok {
					return text, nil
				}
			}
		}
	}

	// OpenAI responses: output[].content[].text where type == "output_text"
	if output, ok := raw["output"].([]any); ok {
		for _, o := range output {
			item, ok := o.(map[string]any)
			if !ok || item["type"] != "message" {
				continue
			}
			contentArr, _ := item["content"].([]any)
			for _, c := range contentArr {
				if block, ok := c.(map[string]any); ok && block["type"] == "output_text" {
					if text, ok := block["text"].(string); ok {
						return text, nil
					}
				}
			}
		}
	}

	return "", fmt.Errorf("could not extract text from response: %s", truncate(string(body), 500))
}

// ---------------------------------------------------------------------------
// Translation response parsing
// ---------------------------------------------------------------------------

var markdownCodeBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// fixInvalidEscapesInJSON doubles backslashes that do not start a valid
// JSON escape inside string values. Models echo Swift and printf text such
// as \( or \% without escaping the backslash.
func fixInvalidEscapesInJSON(jsonContent string) string {
	var fixed strings.Builder
	inQuote := false
	escaped := false

	for i := 0; i < len(jsonContent); i++ {
		c := jsonContent[i]

		if c == '"' && !escaped {
			inQuote = !inQuote
			fixed.WriteByte(c)
			continue
		}

		if inQuote && c == '\\' && !escaped {
			if i+1 < len(jsonContent) && strings.IndexByte(`"\/bfnrtu`, jsonContent[i+1]) >= 0 {
				fixed.WriteByte(c)
				escaped = true
				continue
			}
			fixed.WriteString(`\\`)
			continue
		}

		fixed.WriteByte(c)
		escaped = false
	}

	return fixed.String()
}

// parseTranslations extracts a JSON array of strings from the AI response text.
func parseTranslations(content string, expected int) ([]string, error) {
	content = strings.TrimSpace(content)

	if m := markdownCodeBlock.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}

	startIdx := strings.Index(content, "[")
	endIdx := strings.LastIndex(content, "]")
	if startIdx >= 0 && endIdx > startIdx {
		content = content[startIdx : endIdx+1]
	}

	content = fixInvalidEscapesInJSON(content)

	var translations []string
	if err := json.Unmarshal([]byte(content), &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation response as JSON array: %w\nResponse: %s", err, truncate(content, 300))
	}

	if len(translations) == 0 {
		return nil, fmt.Errorf("got 0 translations, expected %d", expected)
	}

	return translations, nil
}
