package dto

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}
