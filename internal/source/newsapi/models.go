package newsapi

import "encoding/json"

// APIResponse represents the /v2/everything response envelope. Articles are
// decoded one by one so a malformed item cannot fail the page.
type APIResponse struct {
	Status       string            `json:"status"`
	TotalResults int               `json:"totalResults"`
	Articles     []json.RawMessage `json:"articles"`
}

type Article struct {
	Source      Publisher `json:"source"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	URLToImage  string    `json:"urlToImage"`
	PublishedAt string    `json:"publishedAt"`
	Content     string    `json:"content"`
}

type Publisher struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
