// Package markets decodes question initialization events into readable
// market metadata: the question text, its topics and its keywords.
package markets

import (
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ctfradar/radar/internal/models"
)

// Analysis is the decoded form of one question event.
type Analysis struct {
	QuestionID    string    `json:"question_id,omitempty"`
	ConditionID   string    `json:"condition_id,omitempty"`
	AncillaryText string    `json:"ancillary_text"`
	Title         string    `json:"title,omitempty"`
	Description   string    `json:"description,omitempty"`
	BlockTime     time.Time `json:"block_time,omitempty"`
	BlockNumber   uint64    `json:"block_number,omitempty"`
	TxHash        string    `json:"tx_hash,omitempty"`
	Topics        []string  `json:"topics"`
	Keywords      []string  `json:"keywords"`
}

const maxKeywords = 8
const maxTopics = 3

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"the", "and", "for", "that", "with", "will", "this", "from",
		"have", "when", "what", "which", "would", "about", "there",
		"their", "been", "into", "more", "than", "over", "shall",
		"should", "could", "while", "against", "among", "upon", "where",
		"after", "before", "within", "between", "such", "also", "does",
		"ever", "whose", "each", "here", "your", "you", "are", "was",
		"did", "has", "its", "our", "who", "how", "why", "can", "may",
		"per", "any", "market", "markets", "resolve", "resolved",
		"question", "upcoming", "res", "data", "res_data", "initializer",
		"https", "http", "market_id",
	} {
		stopwords[w] = struct{}{}
	}
}

var topicKeywords = map[string][]string{
	"Politics":    {"election", "president", "prime", "minister", "parliament", "vote", "senate", "congress", "policy", "government"},
	"Crypto":      {"bitcoin", "btc", "ethereum", "eth", "polygon", "matic", "sol", "solana", "xrp", "usdt", "token", "crypto", "defi", "blockchain", "stablecoin", "sec", "binance"},
	"Finance":     {"stock", "stocks", "price", "interest", "rate", "rates", "inflation", "gdp", "revenue", "profit", "yield", "bond", "bonds", "treasury", "fed"},
	"Sports":      {"game", "match", "league", "season", "championship", "tournament", "score", "team", "player", "coach", "nfl", "nba", "mlb", "nhl", "cbb", "soccer", "football", "basketball", "ufc", "mls"},
	"Geopolitics": {"war", "conflict", "russia", "ukraine", "china", "sanction", "military", "peace", "nato", "border"},
	"Technology":  {"artificial", "intelligence", "software", "hardware", "chip", "semiconductor", "robotics", "cyber", "cloud", "compute", "machine", "learning"},
	"Weather":     {"temperature", "rain", "snow", "storm", "hurricane", "weather", "climate", "heat", "cold", "precipitation"},
	"Health":      {"covid", "virus", "vaccine", "disease", "hospital", "cases", "death", "health", "cdc", "who"},
}

var (
	wordPattern        = regexp.MustCompile(`[A-Za-z0-9][A-Za-z0-9']+`)
	titlePattern       = regexp.MustCompile(`(?is)title:\s*(.*?)(?:,\s*description:|$)`)
	descriptionPattern = regexp.MustCompile(`(?is)description:\s*(.*?)(?:market_id:|res_data:|initializer:|updates made|https?://|$)`)
)

// AnalyzeEvents decodes every question event that carries ancillary
// data; events without it are dropped.
func AnalyzeEvents(events []models.RawEvent) []Analysis {
	out := make([]Analysis, 0, len(events))
	for _, ev := range events {
		if a, ok := AnalyzeEvent(ev); ok {
			out = append(out, a)
		}
	}
	return out
}

// AnalyzeEvent decodes one question event. ok is false when the event
// carries no ancillary data.
func AnalyzeEvent(ev models.RawEvent) (Analysis, bool) {
	ancillaryHex := argumentText(ev, "ancillaryData")
	if ancillaryHex == "" {
		return Analysis{}, false
	}

	text := DecodeAncillary(ancillaryHex)
	title := extractField(text, titlePattern)
	description := extractField(text, descriptionPattern)

	blockTime, _ := time.Parse(time.RFC3339, ev.Block.Time)

	return Analysis{
		QuestionID:    argumentText(ev, "questionID"),
		ConditionID:   argumentText(ev, "conditionId"),
		AncillaryText: strings.TrimSpace(text),
		Title:         title,
		Description:   description,
		BlockTime:     blockTime,
		BlockNumber:   ev.Block.Number,
		TxHash:        ev.Transaction.Hash,
		Topics:        DetectTopics(title, description, text),
		Keywords:      ExtractKeywords(title, description, text),
	}, true
}

// DecodeAncillary converts a hex ancillaryData payload into UTF-8
// text. Non-hex input is returned unchanged since some indexers emit
// the payload pre-decoded.
func DecodeAncillary(value string) string {
	if value == "" {
		return ""
	}
	body := strings.TrimPrefix(value, "0x")
	if len(body)%2 != 0 {
		return value
	}
	decoded, err := hex.DecodeString(body)
	if err != nil {
		return value
	}
	return strings.ToValidUTF8(string(decoded), "�")
}

// DetectTopics scores the known topic vocabularies against the
// question text and returns the best matches, or General when nothing
// matches.
func DetectTopics(title, description, raw string) []string {
	core := strings.TrimSpace(title + " " + description)
	if core == "" {
		core = raw
	}
	tokens := make(map[string]struct{})
	for _, tok := range tokenize(core) {
		tokens[tok] = struct{}{}
	}

	type scored struct {
		topic string
		score int
	}
	var matches []scored
	for topic, keywords := range topicKeywords {
		score := 0
		for _, kw := range keywords {
			if _, ok := tokens[kw]; ok {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{topic, score})
		}
	}
	if len(matches) == 0 {
		return []string{"General"}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].topic < matches[j].topic
	})
	if len(matches) > maxTopics {
		matches = matches[:maxTopics]
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.topic)
	}
	return out
}

// ExtractKeywords ranks the question's distinctive words. Title words
// weigh more than description words so the traded subject surfaces
// first.
func ExtractKeywords(title, description, raw string) []string {
	counts := make(map[string]int)
	for _, tok := range tokenize(title) {
		if keepToken(tok) {
			counts[tok] += 3
		}
	}
	for _, tok := range tokenize(description) {
		if keepToken(tok) {
			counts[tok]++
		}
	}
	if len(counts) == 0 {
		for _, tok := range tokenize(raw) {
			if keepToken(tok) {
				counts[tok]++
			}
		}
	}
	if len(counts) == 0 {
		return []string{}
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > maxKeywords {
		words = words[:maxKeywords]
	}
	return words
}

func keepToken(tok string) bool {
	if len(tok) <= 2 {
		return false
	}
	_, stop := stopwords[tok]
	return !stop
}

func tokenize(text string) []string {
	if text == "" {
		return nil
	}
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

func extractField(text string, pattern *regexp.Regexp) string {
	m := pattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.Join(strings.Fields(m[1]), " ")
}

func argumentText(ev models.RawEvent, name string) string {
	raw, ok := ev.Argument(name)
	if !ok {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		for _, key := range []string{"string", "hex", "bigInteger", "address"} {
			if s, ok := v[key].(string); ok && s != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
