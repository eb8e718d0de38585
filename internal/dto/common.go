package dto

type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type StatusResponse struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// UpdateStatusRequest picks Online, Away or Busy for a connected caller.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}
