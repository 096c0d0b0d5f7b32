package guardian

import "encoding/json"

// APIResponse represents the Content API /search response.
type APIResponse struct {
	Response SearchResponse `json:"response"`
}

type SearchResponse struct {
	Status      string            `json:"status"`
	Total       int               `json:"total"`
	StartIndex  int               `json:"startIndex"`
	PageSize    int               `json:"pageSize"`
	CurrentPage int               `json:"currentPage"`
	Pages       int               `json:"pages"`
	Results     []json.RawMessage `json:"results"`
}

type Result struct {
	ID                 string  `json:"id"`
	WebTitle           string  `json:"webTitle"`
	WebURL             string  `json:"webUrl"`
	WebPublicationDate string  `json:"webPublicationDate"`
	Fields             *Fields `json:"fields"`
}

// Fields holds the values requested through show-fields.
type Fields struct {
	Standfirst  string `json:"standfirst"`
	Body        string `json:"body"`
	Publication string `json:"publication"`
	Byline      string `json:"byline"`
	Thumbnail   string `json:"thumbnail"`
}
