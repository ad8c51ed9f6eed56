// Package creative implements the search, story, image and ASCII art tools
package creative

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	customHTTP "github.com/tuannvm/mcp-creative-agent/internal/common/http"
	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/handlers"
)

// DefaultSearchEndpoint is the DuckDuckGo Instant Answer API
const DefaultSearchEndpoint = "https://api.duckduckgo.com/"

const maxSearchResults = 3

// instantAnswer is the subset of the Instant Answer response we read
type instantAnswer struct {
	Heading       string         `json:"Heading"`
	AbstractText  string         `json:"AbstractText"`
	Answer        string         `json:"Answer"`
	Results       []relatedTopic `json:"Results"`
	RelatedTopics []relatedTopic `json:"RelatedTopics"`
}

type relatedTopic struct {
	Text     string         `json:"Text"`
	FirstURL string         `json:"FirstURL"`
	Name     string         `json:"Name"`
	Topics   []relatedTopic `json:"Topics"`
}

type searchResult struct {
	Title string
	Body  string
}

// SearchHandler implements search_web
type SearchHandler struct {
	handlers.BaseHandler
	client   *customHTTP.Client
	endpoint string
}

// NewSearchHandler creates the search_web tool. An empty endpoint uses
// DefaultSearchEndpoint.
func NewSearchHandler(client *customHTTP.Client, endpoint string, logger *logging.Logger) *SearchHandler {
	if endpoint == "" {
		endpoint = DefaultSearchEndpoint
	}
	tool := mcp.NewTool("search_web",
		mcp.WithDescription("Search the web and return the top three results as 'title: body' lines"),
		mcp.WithString("query", mcp.Required(), mcp.Description("What to search for")),
	)
	return &SearchHandler{
		BaseHandler: handlers.NewBaseHandler(tool, logger),
		client:      client,
		endpoint:    endpoint,
	}
}

// Handle runs one search
func (h *SearchHandler) Handle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query must not be empty"), nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	var answer instantAnswer
	if _, err := h.client.GetJSON(ctx, h.endpoint, params, &answer); err != nil {
		h.Logger.WarnKV("Search request failed", "query", query, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	results := collectResults(answer, maxSearchResults)
	h.Logger.DebugKV("Search completed", "query", query, "results", len(results))
	if len(results) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No results found for '%s'", query)), nil
	}

	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = r.Title + ": " + r.Body
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

// collectResults flattens the abstract, direct results and related topics
// into at most limit entries
func collectResults(answer instantAnswer, limit int) []searchResult {
	var out []searchResult
	add := func(r searchResult) bool {
		if r.Body == "" {
			return len(out) < limit
		}
		out = append(out, r)
		return len(out) < limit
	}

	if answer.AbstractText != "" {
		title := answer.Heading
		if title == "" {
			title = "Summary"
		}
		if !add(searchResult{Title: title, Body: answer.AbstractText}) {
			return out
		}
	} else if answer.Answer != "" {
		if !add(searchResult{Title: "Answer", Body: answer.Answer}) {
			return out
		}
	}

	var walk func(topics []relatedTopic) bool
	walk = func(topics []relatedTopic) bool {
		for _, t := range topics {
			if len(t.Topics) > 0 {
				if !walk(t.Topics) {
					return false
				}
				continue
			}
			if !add(topicResult(t)) {
				return false
			}
		}
		return true
	}
	if walk(answer.Results) {
		walk(answer.RelatedTopics)
	}
	return out
}

// topicResult splits "Title - description" topic text
func topicResult(t relatedTopic) searchResult {
	if title, body, ok := strings.Cut(t.Text, " - "); ok {
		return searchResult{Title: title, Body: body}
	}
	title := t.FirstURL
	if i := strings.LastIndex(title, "/"); i >= 0 {
		title = strings.ReplaceAll(title[i+1:], "_", " ")
	}
	if unescaped, err := url.PathUnescape(title); err == nil {
		title = unescaped
	}
	if title == "" {
		title = "Result"
	}
	return searchResult{Title: title, Body: t.Text}
}
