package nytimes

import (
	"bytes"
	"encoding/json"
)

// APIResponse represents the Article Search API response.
type APIResponse struct {
	Status   string         `json:"status"`
	Response SearchResponse `json:"response"`
}

// SearchResponse holds docs undecoded; each is decoded on its own.
type SearchResponse struct {
	Docs []json.RawMessage `json:"docs"`
	Meta Meta              `json:"meta"`
}

type Meta struct {
	Hits   int `json:"hits"`
	Offset int `json:"offset"`
}

type Doc struct {
	Headline      Headline   `json:"headline"`
	LeadParagraph string     `json:"lead_paragraph"`
	Abstract      string     `json:"abstract"`
	Source        string     `json:"source"`
	Byline        Byline     `json:"byline"`
	Multimedia    Multimedia `json:"multimedia"`
	WebURL        string     `json:"web_url"`
	PubDate       string     `json:"pub_date"`
	PrintPage     string     `json:"print_page"`
}

type Headline struct {
	Main string `json:"main"`
}

type Byline struct {
	Original string `json:"original"`
}

type Media struct {
	URL string `json:"url"`
}

// Multimedia accepts both the legacy array form and the newer object form
// ({"default": {"url": ...}}) of the multimedia field. Anything else decodes
// to an empty list.
type Multimedia []Media

func (m *Multimedia) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] == 'n' {
		*m = nil
		return nil
	}

	if data[0] == '[' {
		var items []Media
		if err := json.Unmarshal(data, &items); err == nil {
			*m = items
		}
		return nil
	}

	var obj struct {
		Default Media `json:"default"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Default.URL != "" {
		*m = Multimedia{obj.Default}
	}
	return nil
}

// First returns the URL of the first media item, if any.
func (m Multimedia) First() string {
	if len(m) == 0 {
		return ""
	}
	return m[0].URL
}
